package domain

// Session is one calibration and recording context.
type Session struct {
	ID            string
	UserID        int
	Public        bool
	Name          string
	SessionName   string
	QRCode        *string
	SubjectID     *int
	ActivityCount int
}

// Equal compares sessions by identity.
func (s Session) Equal(other Session) bool {
	return s.ID == other.ID
}
