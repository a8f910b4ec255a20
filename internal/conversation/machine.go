// Package conversation holds the payment conversation transitions. Advance is
// pure: callers persist Step.Next and perform the side effects named by the
// outcome.
package conversation

import (
	"strings"
	"unicode/utf8"

	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

const MaxTransactionIDLen = 128

type InputKind int

const (
	InputConfirmPayment InputKind = iota
	InputText
	InputImage
	InputOther
	InputSkip
	InputCancel
)

type Input struct {
	Kind     InputKind
	Plan     types.PlanType
	Text     string
	ImageRef string
}

type Outcome int

const (
	// OutcomeIgnored leaves the session alone; content is handled elsewhere.
	OutcomeIgnored Outcome = iota
	OutcomeAwaitProof
	OutcomeRepromptProof
	OutcomeAwaitTransactionID
	OutcomeRepromptTransactionID
	OutcomeSubmit
	OutcomeCancelled
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAwaitProof:
		return "await_proof"
	case OutcomeRepromptProof:
		return "reprompt_proof"
	case OutcomeAwaitTransactionID:
		return "await_transaction_id"
	case OutcomeRepromptTransactionID:
		return "reprompt_transaction_id"
	case OutcomeSubmit:
		return "submit"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeExpired:
		return "expired"
	default:
		return "ignored"
	}
}

// Submission is everything needed to open a verification request.
type Submission struct {
	Plan          types.PlanType
	ProofRef      string
	TransactionID *string
}

type Step struct {
	Next       types.Session
	Outcome    Outcome
	Submission *Submission
}

// Persist reports whether Next has to be written back.
func (s Step) Persist() bool {
	switch s.Outcome {
	case OutcomeAwaitProof, OutcomeAwaitTransactionID:
		return true
	default:
		return false
	}
}

// Clear reports whether the session has to be removed.
func (s Step) Clear() bool {
	switch s.Outcome {
	case OutcomeSubmit, OutcomeCancelled, OutcomeExpired:
		return true
	default:
		return false
	}
}

func Advance(cur types.Session, in Input) Step {
	if in.Kind == InputCancel {
		return terminal(cur, OutcomeCancelled)
	}
	if in.Kind == InputConfirmPayment {
		if !in.Plan.IsPaid() {
			return Step{Next: cur, Outcome: OutcomeIgnored}
		}
		return Step{
			Next:    types.Session{ChatID: cur.ChatID, State: types.StateWaitingPaymentProof, SelectedPlan: in.Plan},
			Outcome: OutcomeAwaitProof,
		}
	}

	// Anything but a fresh confirm on a lapsed flow reports the expiry.
	if cur.Expired {
		return terminal(cur, OutcomeExpired)
	}

	switch cur.State {
	case types.StateNone, "":
		if in.Kind == InputSkip {
			return terminal(cur, OutcomeExpired)
		}
		return Step{Next: cur, Outcome: OutcomeIgnored}

	case types.StateWaitingPaymentProof:
		if in.Kind != InputImage {
			return Step{Next: cur, Outcome: OutcomeRepromptProof}
		}
		if !cur.SelectedPlan.IsPaid() || in.ImageRef == "" {
			return terminal(cur, OutcomeExpired)
		}
		next := cur
		next.State = types.StateWaitingTransactionID
		next.PaymentProofRef = in.ImageRef
		return Step{Next: next, Outcome: OutcomeAwaitTransactionID}

	case types.StateWaitingTransactionID:
		switch in.Kind {
		case InputText:
			txn := strings.TrimSpace(in.Text)
			if txn == "" || utf8.RuneCountInString(txn) > MaxTransactionIDLen {
				return Step{Next: cur, Outcome: OutcomeRepromptTransactionID}
			}
			return submit(cur, &txn)
		case InputSkip:
			return submit(cur, nil)
		default:
			return Step{Next: cur, Outcome: OutcomeRepromptTransactionID}
		}
	}

	return terminal(cur, OutcomeExpired)
}

func submit(cur types.Session, txn *string) Step {
	if !cur.SelectedPlan.IsPaid() || cur.PaymentProofRef == "" {
		return terminal(cur, OutcomeExpired)
	}
	step := terminal(cur, OutcomeSubmit)
	step.Submission = &Submission{
		Plan:          cur.SelectedPlan,
		ProofRef:      cur.PaymentProofRef,
		TransactionID: txn,
	}
	return step
}

func terminal(cur types.Session, o Outcome) Step {
	return Step{Next: types.Session{ChatID: cur.ChatID, State: types.StateNone}, Outcome: o}
}
