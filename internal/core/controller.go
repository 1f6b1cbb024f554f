// Package core holds the conversation controller: a small per-session state
// machine that decides, turn by turn, whether to query the customer store,
// bind an uploaded document, or delegate to the completion service.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/meridianbank/support-assistant/internal/extract"
	"github.com/meridianbank/support-assistant/internal/store"
)

const recentTransactionLimit = 5

// CustomerStore is the read-mostly data access the controller needs.
type CustomerStore interface {
	LookupCustomer(ctx context.Context, phone, zip string) (*store.Customer, error)
	GetBalance(ctx context.Context, customerID int64) (decimal.Decimal, error)
	GetRecentTransactions(ctx context.Context, customerID int64, limit int) ([]store.Transaction, error)
	CreateLead(ctx context.Context, lead *store.Lead) error
}

// Completer sends a question plus optional context to the hosted model.
type Completer interface {
	Complete(ctx context.Context, question, contextText string) (string, error)
}

// Controller drives every session's conversation. It is safe for concurrent
// use; per-session ordering comes from each session's own lock.
type Controller struct {
	store           CustomerStore
	llm             Completer
	maxContextChars int
	extractText     func(data []byte) (string, error)
}

func NewController(cs CustomerStore, llm Completer, maxContextChars int) *Controller {
	return &Controller{
		store:           cs,
		llm:             llm,
		maxContextChars: maxContextChars,
		extractText:     extract.Text,
	}
}

const (
	greeting = "Welcome to the Meridian Bank digital assistant! " +
		"Are you an existing customer, or a new customer wishing to open an account?"

	menu = "Anything else I can help with? You can ask about your balance, recent transactions " +
		"or savings products, send me a PDF to ask about, or type exit to leave."

	savingsCopy = "We offer Basic Savings, High-Yield Savings (4.5% APY) and Money Market accounts. " +
		"Reply yes for the application link."

	savingsLink = "Apply here: https://www.meridianbank.example/personal/savings"

	verifyPrompt = "Please enter your registered phone number:"
)

// Open starts the conversation and returns the greeting turn.
func (c *Controller) Open(sess *Session) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.phase = PhaseAwaitType
	sess.appendTurn(SpeakerAssistant, greeting)
	return greeting
}

// HandleMessage processes one user turn to completion and returns the
// assistant's reply. Both turns are appended to the session log.
func (c *Controller) HandleMessage(ctx context.Context, sess *Session, text string) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	msg := strings.TrimSpace(text)
	sess.appendTurn(SpeakerUser, msg)

	reply := c.route(ctx, sess, msg)
	sess.appendTurn(SpeakerAssistant, reply)
	return reply
}

func (c *Controller) route(ctx context.Context, sess *Session, msg string) string {
	switch sess.phase {
	case PhaseStart:
		sess.phase = PhaseAwaitType
		return greeting

	case PhaseAwaitType:
		return c.handleAwaitType(sess, msg)

	case PhaseAwaitPhone:
		if msg == "" {
			return verifyPrompt
		}
		sess.pendingPhone = msg
		sess.phase = PhaseAwaitZip
		return "Thank you. Now enter your ZIP code:"

	case PhaseAwaitZip:
		return c.handleVerification(ctx, sess, msg)

	case PhaseLeadName:
		if !ValidLeadName(msg) {
			return "I didn't catch a name there. What's your first and last name?"
		}
		sess.lead.Name = titleCase(msg)
		sess.phase = PhaseLeadPhone
		return "Thanks. May I have a phone number to reach you?"

	case PhaseLeadPhone:
		if !ValidLeadPhone(msg) {
			return "That doesn't look like a phone number. Please enter at least ten digits:"
		}
		sess.lead.Phone = msg
		sess.phase = PhaseLeadEmail
		return "And finally, your email address?"

	case PhaseLeadEmail:
		return c.handleLeadEmail(ctx, sess, msg)

	case PhaseAuthenticated, PhaseLeadComplete:
		return c.handleSettled(ctx, sess, msg)

	case PhaseConfirmExit:
		return c.handleConfirmExit(sess, msg)
	}

	// Unknown phase: recover by starting over, mirroring the session reset
	// any unexpected condition gets.
	log.Error().Str("session", sess.ID).Str("phase", string(sess.phase)).Msg("unknown conversation phase")
	sess.reset()
	sess.phase = PhaseAwaitType
	return "Something went wrong, let's start from the top. " + greeting
}

func (c *Controller) handleAwaitType(sess *Session, msg string) string {
	switch {
	case LooksLikeExistingCustomer(msg):
		sess.phase = PhaseAwaitPhone
		return "Great! " + verifyPrompt
	case LooksLikeNewCustomer(msg):
		sess.phase = PhaseLeadName
		return "Let's get to know you. What's your first and last name?"
	}

	// A banking question before authentication redirects into verification
	// rather than being answered.
	switch Classify(msg) {
	case IntentBalance, IntentTransactions:
		sess.phase = PhaseAwaitPhone
		return "I can help with that once I've verified your identity. " + verifyPrompt
	}

	return "Please type existing or new to continue."
}

func (c *Controller) handleVerification(ctx context.Context, sess *Session, zip string) string {
	customer, err := c.store.LookupCustomer(ctx, sess.pendingPhone, zip)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			sess.pendingPhone = ""
			sess.phase = PhaseAwaitPhone
			return "Those details don't match our records. Let's try again. " + verifyPrompt
		}
		log.Error().Err(err).Str("session", sess.ID).Msg("customer lookup failed")
		return "I'm having trouble reaching our records right now. Please re-enter your ZIP code:"
	}

	sess.customerID = &customer.ID
	sess.customerName = customer.FirstName
	sess.pendingPhone = ""
	sess.phase = PhaseAuthenticated
	return fmt.Sprintf("Welcome back, %s! %s", customer.FirstName, menu)
}

func (c *Controller) handleLeadEmail(ctx context.Context, sess *Session, msg string) string {
	if !ValidLeadEmail(msg) {
		return "That doesn't look like an email address. Please try again:"
	}
	sess.lead.Email = msg

	lead := &store.Lead{Name: sess.lead.Name, Phone: sess.lead.Phone, Email: sess.lead.Email}
	if err := c.store.CreateLead(ctx, lead); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("failed to persist lead")
		return "I couldn't save your details just now. Please re-enter your email address:"
	}

	sess.phase = PhaseLeadComplete
	return fmt.Sprintf("Thanks %s! A banker will contact you soon. %s", sess.lead.Name, menu)
}

func (c *Controller) handleSettled(ctx context.Context, sess *Session, msg string) string {
	switch Classify(msg) {
	case IntentExit:
		sess.resumePhase = sess.phase
		sess.phase = PhaseConfirmExit
		return "Are you sure you want to end the chat? (yes / no)"

	case IntentGoodbye:
		sess.reset()
		return "It was a pleasure assisting you. Goodbye!"

	case IntentUpload:
		return "Send your PDF through the document upload, then ask me about it."

	case IntentBalance:
		return c.answerBalance(ctx, sess)

	case IntentTransactions:
		return c.answerTransactions(ctx, sess)

	case IntentSavings:
		return savingsCopy

	case IntentAffirm:
		return savingsLink + " " + menu
	}

	return c.answerGeneral(ctx, sess, msg)
}

func (c *Controller) answerBalance(ctx context.Context, sess *Session) string {
	if sess.customerID == nil {
		// A prospect asking for account data is routed into verification,
		// never answered.
		sess.phase = PhaseAwaitPhone
		return "I can only share account details with verified customers. " + verifyPrompt
	}

	balance, err := c.store.GetBalance(ctx, *sess.customerID)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("balance query failed")
		return "I couldn't retrieve your balance just now. Please try again. " + menu
	}
	return fmt.Sprintf("Your balance is $%s. %s", balance.StringFixed(2), menu)
}

func (c *Controller) answerTransactions(ctx context.Context, sess *Session) string {
	if sess.customerID == nil {
		sess.phase = PhaseAwaitPhone
		return "I can only share account details with verified customers. " + verifyPrompt
	}

	txns, err := c.store.GetRecentTransactions(ctx, *sess.customerID, recentTransactionLimit)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("transaction query failed")
		return "I couldn't retrieve your transactions just now. Please try again. " + menu
	}
	if len(txns) == 0 {
		return "No recent transactions. " + menu
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are your last %d transactions:\n", len(txns))
	for _, t := range txns {
		fmt.Fprintf(&b, "- %s: %s ($%s)\n", t.Date.Format("2006-01-02"), t.Description, t.Amount.StringFixed(2))
	}
	b.WriteString("\n")
	b.WriteString(menu)
	return b.String()
}

func (c *Controller) answerGeneral(ctx context.Context, sess *Session, msg string) string {
	contextText := sess.documentText
	if contextText == "" {
		if sess.customerID == nil {
			// A prospect with no document bound: nothing to ground an
			// answer in, so re-offer the menu.
			return menu
		}
		contextText = c.accountContext(ctx, *sess.customerID)
	}

	answer, err := c.llm.Complete(ctx, msg, contextText)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			return "Our assistant service is a little busy right now. Please try again in a moment. " + menu
		default:
			log.Error().Err(err).Str("session", sess.ID).Msg("completion failed")
			return "I couldn't reach our assistant service. Please try again. " + menu
		}
	}
	return answer + "\n\n" + menu
}

// accountContext summarizes the customer's store data for context
// injection. Store failures degrade to an empty context instead of failing
// the turn.
func (c *Controller) accountContext(ctx context.Context, customerID int64) string {
	var b strings.Builder

	balance, err := c.store.GetBalance(ctx, customerID)
	if err != nil {
		log.Warn().Err(err).Int64("customer", customerID).Msg("could not build account context")
		return ""
	}
	fmt.Fprintf(&b, "Current account balance: $%s\n", balance.StringFixed(2))

	txns, err := c.store.GetRecentTransactions(ctx, customerID, recentTransactionLimit)
	if err == nil && len(txns) > 0 {
		b.WriteString("Recent transactions:\n")
		for _, t := range txns {
			fmt.Fprintf(&b, "- %s: %s ($%s)\n", t.Date.Format("2006-01-02"), t.Description, t.Amount.StringFixed(2))
		}
	}

	return b.String()
}

func (c *Controller) handleConfirmExit(sess *Session, msg string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(msg)), "y") {
		sess.reset()
		return "Session closed. Have a great day!"
	}
	sess.phase = sess.resumePhase
	sess.resumePhase = ""
	return "No worries, we're still connected. " + menu
}

// HandleUpload binds an uploaded document's extracted text to the session,
// replacing any previous document wholesale. Uploads are only accepted once
// the session is settled (verified customer or completed lead); earlier in
// the flow they are declined with guidance.
func (c *Controller) HandleUpload(ctx context.Context, sess *Session, filename string, data []byte) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.appendTurn(SpeakerUser, fmt.Sprintf("[uploaded %s]", filename))

	reply := c.bindDocument(sess, filename, data)
	sess.appendTurn(SpeakerAssistant, reply)
	return reply
}

func (c *Controller) bindDocument(sess *Session, filename string, data []byte) string {
	if sess.phase != PhaseAuthenticated && sess.phase != PhaseLeadComplete {
		return "Let's finish getting you set up before looking at documents. " +
			"Please complete verification (or registration) first."
	}

	text, err := c.extractText(data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedFormat):
			return "That file doesn't look like a PDF. Please upload a PDF document."
		case errors.Is(err, extract.ErrCorruptDocument):
			return "I couldn't read that PDF. It may be damaged; please try another file."
		}
		log.Error().Err(err).Str("session", sess.ID).Msg("document extraction failed")
		return "I couldn't process that document. Please try again."
	}

	sess.documentText = extract.Truncate(text, c.maxContextChars)
	sess.documentName = filename

	if sess.documentText == "" {
		return fmt.Sprintf("%s uploaded, but I couldn't find any extractable text in it. "+
			"Scanned-image PDFs aren't supported.", filename)
	}
	return fmt.Sprintf("%s uploaded successfully! Ask away.", filename)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
