package port

// ProofIssuer mints the opaque proof-of-verification artifact handed to the
// caller after a successful confirmation. The concrete form (signed token,
// session claim) is a transport decision, not core logic.
type ProofIssuer interface {
	IssueVerificationProof(userID, verificationID string, newUser bool) (string, error)
}
