package ussd

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/congo-pay/ussd_gateway/internal/payments"
	"github.com/congo-pay/ussd_gateway/internal/wallet"
)

// MaxScreenLength is the longest message most handsets render on one screen.
const MaxScreenLength = 182

const (
	msgInvalidOption   = "Invalid option."
	msgInvalidInput    = "Invalid input."
	msgWrongPIN        = "Wrong PIN."
	msgPINFormat       = "PIN must be 4 digits."
	msgPINMismatch     = "PINs do not match."
	msgSessionExpired  = "Your session has expired. Please dial again."
	msgUnavailable     = "Sorry, the service is temporarily unavailable. Please try again later."
	msgLocked          = "Too many wrong PIN attempts. PIN entry is locked, please try again later."
	msgAlreadyRegister = "This number is already registered. Dial again and choose Login."
	msgNotRegistered   = "No account found for this number. Dial again and choose Register."

	promptPIN       = "Enter your 4-digit PIN:"
	promptCreatePIN = "Create a 4-digit PIN:"
	promptConfirm   = "Confirm your PIN:"
)

// reply is the outcome of dispatching one input on a stage.
type reply struct {
	text string
	end  bool
}

func prompt(text string) reply { return reply{text: text} }

func finish(text string) reply { return reply{text: text, end: true} }

// retry re-renders a prompt under an error line.
func retry(problem, text string) reply {
	return prompt(problem + "\n" + text)
}

func (e *Engine) money(amount int64) string {
	return wallet.FormatAmount(e.opts.Currency, amount)
}

func (e *Engine) goodbye() string {
	return fmt.Sprintf("Thank you for using %s.", e.opts.AppName)
}

// failure renders an executor error. Messages never carry references or
// internal error text.
func (e *Engine) failure(err error) reply {
	switch {
	case errors.Is(err, payments.ErrInsufficientBalance):
		return finish("Sorry, your balance is insufficient. Transaction cancelled.")
	case errors.Is(err, payments.ErrRecipientNotFound):
		return finish("Sorry, the recipient is not registered. Transaction cancelled.")
	case errors.Is(err, payments.ErrUnsupportedProvider):
		return finish("Sorry, airtime is not available for that network.")
	case errors.Is(err, payments.ErrDuplicateOperation):
		return finish("This transaction has already been processed.")
	default:
		return finish("Sorry, we could not complete your transaction. You have not been charged.")
	}
}

// fitScreen truncates text to MaxScreenLength runes.
func fitScreen(text string) string {
	if utf8.RuneCountInString(text) <= MaxScreenLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:MaxScreenLength-3]), " \n") + "..."
}
