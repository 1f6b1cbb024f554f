package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianbank/support-assistant/internal/extract"
	"github.com/meridianbank/support-assistant/internal/store"
)

type stubStore struct {
	customer  *store.Customer
	txns      []store.Transaction
	leads     []store.Lead
	lookupErr error
}

func (s *stubStore) LookupCustomer(ctx context.Context, phone, zip string) (*store.Customer, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	if s.customer != nil && s.customer.Phone == phone && s.customer.ZipCode == zip {
		return s.customer, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) GetBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	if s.customer == nil || s.customer.ID != customerID {
		return decimal.Zero, store.ErrNotFound
	}
	return s.customer.Balance, nil
}

func (s *stubStore) GetRecentTransactions(ctx context.Context, customerID int64, limit int) ([]store.Transaction, error) {
	if len(s.txns) > limit {
		return s.txns[:limit], nil
	}
	return s.txns, nil
}

func (s *stubStore) CreateLead(ctx context.Context, lead *store.Lead) error {
	s.leads = append(s.leads, *lead)
	return nil
}

// echoCompleter records what it was asked and echoes the context back, so
// tests can verify context injection.
type echoCompleter struct {
	lastQuestion string
	lastContext  string
	err          error
}

func (e *echoCompleter) Complete(ctx context.Context, question, contextText string) (string, error) {
	e.lastQuestion = question
	e.lastContext = contextText
	if e.err != nil {
		return "", e.err
	}
	return fmt.Sprintf("echo(%s)", question), nil
}

func seededCustomer() *store.Customer {
	return &store.Customer{
		ID:        1,
		FirstName: "Avery",
		LastName:  "Collins",
		Phone:     "555-0100",
		ZipCode:   "12345",
		Balance:   decimal.RequireFromString("1523.47"),
	}
}

func newTestController(cs CustomerStore, llm Completer) *Controller {
	c := NewController(cs, llm, 8000)
	c.extractText = func(data []byte) (string, error) {
		return string(data), nil
	}
	return c
}

func openSession(c *Controller) *Session {
	sess := NewSessions().Create()
	c.Open(sess)
	return sess
}

// say drives one user turn.
func say(t *testing.T, c *Controller, sess *Session, text string) string {
	t.Helper()
	return c.HandleMessage(context.Background(), sess, text)
}

func authenticate(t *testing.T, c *Controller, sess *Session) {
	t.Helper()
	say(t, c, sess, "existing customer")
	say(t, c, sess, "555-0100")
	reply := say(t, c, sess, "12345")
	if sess.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated phase, got %s (reply: %q)", sess.Phase(), reply)
	}
}

func TestVerificationSuccess(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)

	reply := say(t, c, sess, "I'm an existing customer")
	if sess.Phase() != PhaseAwaitPhone {
		t.Fatalf("expected await_phone, got %s", sess.Phase())
	}
	if !strings.Contains(reply, "phone number") {
		t.Fatalf("expected phone prompt, got %q", reply)
	}

	say(t, c, sess, "555-0100")
	if sess.Phase() != PhaseAwaitZip {
		t.Fatalf("expected await_zip, got %s", sess.Phase())
	}

	reply = say(t, c, sess, "12345")
	if sess.Phase() != PhaseAuthenticated {
		t.Fatalf("expected authenticated, got %s", sess.Phase())
	}
	if !strings.Contains(reply, "Welcome back, Avery") {
		t.Fatalf("expected welcome, got %q", reply)
	}
}

func TestVerificationNotFoundStaysUnauthenticated(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)

	say(t, c, sess, "existing")
	say(t, c, sess, "000-0000")
	reply := say(t, c, sess, "99999")

	if sess.Phase() != PhaseAwaitPhone {
		t.Fatalf("expected re-prompt back to await_phone, got %s", sess.Phase())
	}
	if !strings.Contains(reply, "don't match") {
		t.Fatalf("expected mismatch message, got %q", reply)
	}
}

func TestBalanceAnswerIsDirect(t *testing.T) {
	llm := &echoCompleter{}
	c := newTestController(&stubStore{customer: seededCustomer()}, llm)
	sess := openSession(c)
	authenticate(t, c, sess)

	reply := say(t, c, sess, "what's my balance?")
	if !strings.Contains(reply, "1523.47") {
		t.Fatalf("expected balance value in reply, got %q", reply)
	}
	if llm.lastQuestion != "" {
		t.Fatalf("balance answer should not invoke the completion client, got question %q", llm.lastQuestion)
	}
}

func TestRecentTransactionsAnswer(t *testing.T) {
	st := &stubStore{customer: seededCustomer()}
	base := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		st.txns = append(st.txns, store.Transaction{
			ID:          int64(i + 1),
			CustomerID:  1,
			Date:        base.AddDate(0, 0, -i),
			Description: "Groceries",
			Amount:      decimal.RequireFromString("-100.00"),
		})
	}
	c := newTestController(st, &echoCompleter{})
	sess := openSession(c)
	authenticate(t, c, sess)

	reply := say(t, c, sess, "show my recent transactions")
	if !strings.Contains(reply, "last 5 transactions") {
		t.Fatalf("expected 5 transactions, got %q", reply)
	}
	if !strings.Contains(reply, "2026-08-20") {
		t.Fatalf("expected newest transaction date, got %q", reply)
	}
}

func TestNoTransactions(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)
	authenticate(t, c, sess)

	reply := say(t, c, sess, "transactions please")
	if !strings.Contains(reply, "No recent transactions") {
		t.Fatalf("expected empty-history message, got %q", reply)
	}
}

func TestBankingQuestionBeforeAuthRedirects(t *testing.T) {
	llm := &echoCompleter{}
	c := newTestController(&stubStore{customer: seededCustomer()}, llm)
	sess := openSession(c)

	reply := say(t, c, sess, "what's my balance?")
	if sess.Phase() != PhaseAwaitPhone {
		t.Fatalf("expected redirect into verification, got phase %s", sess.Phase())
	}
	if strings.Contains(reply, "1523.47") {
		t.Fatalf("balance must never be answered unauthenticated, got %q", reply)
	}
	if llm.lastQuestion != "" {
		t.Fatal("completion client must not be invoked before authentication")
	}
}

func TestLeadCaptureFlow(t *testing.T) {
	st := &stubStore{}
	c := newTestController(st, &echoCompleter{})
	sess := openSession(c)

	say(t, c, sess, "I'd like to open a new account")
	if sess.Phase() != PhaseLeadName {
		t.Fatalf("expected lead_name, got %s", sess.Phase())
	}

	// Invalid name keeps the phase.
	say(t, c, sess, "   ")
	if sess.Phase() != PhaseLeadName {
		t.Fatalf("invalid name must not advance, got %s", sess.Phase())
	}

	say(t, c, sess, "jordan hayes")
	if sess.Phase() != PhaseLeadPhone {
		t.Fatalf("expected lead_phone, got %s", sess.Phase())
	}

	// Too few digits keeps the phase.
	say(t, c, sess, "12345")
	if sess.Phase() != PhaseLeadPhone {
		t.Fatalf("invalid phone must not advance, got %s", sess.Phase())
	}

	say(t, c, sess, "555-867-5309x1")
	if sess.Phase() != PhaseLeadEmail {
		t.Fatalf("expected lead_email, got %s", sess.Phase())
	}

	// Missing @ keeps the phase.
	say(t, c, sess, "not-an-email")
	if sess.Phase() != PhaseLeadEmail {
		t.Fatalf("invalid email must not advance, got %s", sess.Phase())
	}

	reply := say(t, c, sess, "jordan@example.com")
	if sess.Phase() != PhaseLeadComplete {
		t.Fatalf("expected lead_complete, got %s", sess.Phase())
	}
	if !strings.Contains(reply, "Jordan Hayes") {
		t.Fatalf("expected title-cased name in reply, got %q", reply)
	}
	if len(st.leads) != 1 || st.leads[0].Email != "jordan@example.com" {
		t.Fatalf("expected persisted lead, got %+v", st.leads)
	}
}

func TestDocumentContextRoutedToCompleter(t *testing.T) {
	llm := &echoCompleter{}
	c := newTestController(&stubStore{customer: seededCustomer()}, llm)
	sess := openSession(c)
	authenticate(t, c, sess)

	status := c.HandleUpload(context.Background(), sess, "report.pdf", []byte("net revenue was 4.2 billion"))
	if !strings.Contains(status, "uploaded successfully") {
		t.Fatalf("expected upload confirmation, got %q", status)
	}

	say(t, c, sess, "what does this say about revenue?")
	if !strings.Contains(llm.lastContext, "net revenue was 4.2 billion") {
		t.Fatalf("expected extracted text as context, got %q", llm.lastContext)
	}
	if !strings.Contains(llm.lastQuestion, "revenue") {
		t.Fatalf("expected user question forwarded, got %q", llm.lastQuestion)
	}
}

func TestUploadBeforeAuthRejected(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)

	status := c.HandleUpload(context.Background(), sess, "report.pdf", []byte("text"))
	if !strings.Contains(status, "verification") {
		t.Fatalf("expected guidance to verify first, got %q", status)
	}

	say(t, c, sess, "existing")
	if got := sess.Phase(); got != PhaseAwaitPhone {
		t.Fatalf("rejected upload must not disturb the flow, got %s", got)
	}
}

func TestCorruptDocumentKeepsPreviousContext(t *testing.T) {
	llm := &echoCompleter{}
	c := newTestController(&stubStore{customer: seededCustomer()}, llm)
	c.extractText = func(data []byte) (string, error) {
		if string(data) == "bad" {
			return "", extract.ErrCorruptDocument
		}
		return string(data), nil
	}
	sess := openSession(c)
	authenticate(t, c, sess)

	c.HandleUpload(context.Background(), sess, "good.pdf", []byte("good text"))
	status := c.HandleUpload(context.Background(), sess, "bad.pdf", []byte("bad"))
	if !strings.Contains(status, "couldn't read") {
		t.Fatalf("expected corrupt-document message, got %q", status)
	}

	say(t, c, sess, "summarize the document")
	if llm.lastContext != "good text" {
		t.Fatalf("corrupt upload must not replace bound context, got %q", llm.lastContext)
	}
}

func TestCompletionFailureIsConversational(t *testing.T) {
	llm := &echoCompleter{err: ErrRateLimited}
	c := newTestController(&stubStore{customer: seededCustomer()}, llm)
	sess := openSession(c)
	authenticate(t, c, sess)
	c.HandleUpload(context.Background(), sess, "report.pdf", []byte("some text"))

	reply := say(t, c, sess, "what does it say?")
	if !strings.Contains(reply, "try again") {
		t.Fatalf("expected try-again message, got %q", reply)
	}
	if sess.Phase() != PhaseAuthenticated {
		t.Fatalf("completion failure must not change phase, got %s", sess.Phase())
	}
}

func TestExitConfirmation(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)
	authenticate(t, c, sess)

	say(t, c, sess, "exit")
	if sess.Phase() != PhaseConfirmExit {
		t.Fatalf("expected confirm_exit, got %s", sess.Phase())
	}

	say(t, c, sess, "no")
	if sess.Phase() != PhaseAuthenticated {
		t.Fatalf("declined exit should resume, got %s", sess.Phase())
	}

	say(t, c, sess, "exit")
	reply := say(t, c, sess, "yes")
	if sess.Phase() != PhaseStart {
		t.Fatalf("confirmed exit should reset the session, got %s", sess.Phase())
	}
	if !strings.Contains(reply, "Session closed") {
		t.Fatalf("expected closing message, got %q", reply)
	}
}

func TestSavingsAndApplicationLink(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)
	authenticate(t, c, sess)

	reply := say(t, c, sess, "tell me about savings accounts")
	if !strings.Contains(reply, "High-Yield") {
		t.Fatalf("expected savings copy, got %q", reply)
	}

	reply = say(t, c, sess, "yes")
	if !strings.Contains(reply, "https://") {
		t.Fatalf("expected application link, got %q", reply)
	}
}

func TestTranscriptRecordsBothSpeakers(t *testing.T) {
	c := newTestController(&stubStore{customer: seededCustomer()}, &echoCompleter{})
	sess := openSession(c)
	say(t, c, sess, "existing")

	turns := sess.Transcript()
	if len(turns) != 3 { // greeting, user, assistant
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[1].Speaker != SpeakerUser || turns[2].Speaker != SpeakerAssistant {
		t.Fatalf("unexpected speaker order: %+v", turns)
	}
}
