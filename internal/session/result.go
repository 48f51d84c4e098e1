package session

import "github.com/mrlokans/bookkeeper/internal/entities"

// Outcome classifies how a command ended.
type Outcome int

const (
	Success Outcome = iota
	InvalidInput
	InvalidCredentials
	DuplicateEmail
	NotLoggedIn
	NotFound
	Duplicate
	StorageError
	NetworkError
)

var outcomeNames = map[Outcome]string{
	Success:            "success",
	InvalidInput:       "invalid_input",
	InvalidCredentials: "invalid_credentials",
	DuplicateEmail:     "duplicate_email",
	NotLoggedIn:        "not_logged_in",
	NotFound:           "not_found",
	Duplicate:          "duplicate",
	StorageError:       "storage_error",
	NetworkError:       "network_error",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Result is what every session command returns. Book or User is set when
// the command produced one.
type Result struct {
	Outcome Outcome
	Message string
	Err     error
	User    *entities.User
	Book    *entities.Book
}

func (r Result) OK() bool {
	return r.Outcome == Success
}

func ok(message string) Result {
	return Result{Outcome: Success, Message: message}
}

func fail(outcome Outcome, message string, err error) Result {
	return Result{Outcome: outcome, Message: message, Err: err}
}
