package models

// CodeStatus says whether a CodeView carries a usable code.
type CodeStatus string

const (
	CodeOK     CodeStatus = "ok"
	CodeLocked CodeStatus = "locked"
	CodeError  CodeStatus = "error"
)

// CodeView is what the front end shows for one account.
type CodeView struct {
	ID        AccountID
	Name      string
	Code      string
	Status    CodeStatus
	Remaining int
	Err       error
}

// Display returns the code, or a placeholder when there is none.
func (c CodeView) Display() string {
	switch c.Status {
	case CodeOK:
		return c.Code
	case CodeLocked:
		return "Locked"
	default:
		return "Error"
	}
}
