package domain

import "time"

// CertificateRecord links a caller-supplied certificate id to the stored
// certificate image. Records are create-only.
type CertificateRecord struct {
	CertificateID string        `json:"certificate_id" bson:"_id"`
	StudentName   string        `json:"student_name" bson:"student_name"`
	CourseName    string        `json:"course_name" bson:"course_name"`
	IssueDate     string        `json:"issue_date" bson:"issue_date"`
	BlobReference BlobReference `json:"blob_reference" bson:"blob_reference"`
	IssuedBy      Identity      `json:"issued_by,omitempty" bson:"issued_by,omitempty"`
	CreatedAt     time.Time     `json:"created_at" bson:"created_at"`
}

// Session is the client-local cache of the last successful login. It is
// advisory only.
type Session struct {
	Identity   Identity `json:"identity" yaml:"userAddress"`
	Role       Role     `json:"role" yaml:"userRole"`
	Authorized bool     `json:"authorized" yaml:"authorized"`
}
