package model

// User mirrors the profile stored in users/{userId}.
type User struct {
	UserID   string  `firestore:"id" json:"id"`
	Name     string  `firestore:"name" json:"name"`
	Email    string  `firestore:"email" json:"email"`
	Joined   float64 `firestore:"joined" json:"joined"`
	Password string  `firestore:"password,omitempty" json:"-"` // bcrypt hash
}
