package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Exam represents a timed multiple-choice exam ("tryout").
// Duration changes never move the expiry of a session already started.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	DurationMinutes int        `json:"duration_in_minutes"`
	PassingScore    int        `json:"passing_score"`
	MaxAttempts     *int       `json:"max_attempts"`
	IsPublished     bool       `json:"is_published"`
	PackageID       *string    `json:"package_id"`
	AuthorID        *uuid.UUID `json:"author_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// AttemptLimit returns the configured attempt limit, defaulting to one.
func (e *Exam) AttemptLimit() int {
	if e.MaxAttempts == nil || *e.MaxAttempts < 1 {
		return 1
	}
	return *e.MaxAttempts
}

// VisibleTo reports whether a participant owning packages may see the exam:
// exams of those packages, or exams without a package when they own none.
func (e *Exam) VisibleTo(packages []string) bool {
	if len(packages) == 0 {
		return e.PackageID == nil
	}
	return e.PackageID != nil && slices.Contains(packages, *e.PackageID)
}

// ExamSummary is an exam with its denormalized question count.
type ExamSummary struct {
	Exam
	QuestionCount int `json:"question_count"`
}

// ParticipantExam is an entry on the participant dashboard.
type ParticipantExam struct {
	ExamSummary
	LatestResult *ExamResult `json:"latest_result,omitempty"`
}

// ExamRequest is the payload for creating or updating an exam.
type ExamRequest struct {
	Title           string  `json:"title" binding:"required,min=3,max=255"`
	Description     string  `json:"description" binding:"required,min=10"`
	DurationMinutes int     `json:"duration_in_minutes" binding:"required,min=5,max=240"`
	PassingScore    *int    `json:"passing_score" binding:"required,min=0,max=100"`
	MaxAttempts     int     `json:"max_attempts" binding:"omitempty,min=1,max=10"`
	PackageID       *string `json:"package_id" binding:"omitempty,max=100"`
}

// ToExam maps the request onto a new Exam value, applying form defaults.
func (r *ExamRequest) ToExam() *Exam {
	maxAttempts := r.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	desc := r.Description

	var pkg *string
	if r.PackageID != nil && *r.PackageID != "" {
		p := *r.PackageID
		pkg = &p
	}

	return &Exam{
		Title:           r.Title,
		Description:     &desc,
		DurationMinutes: r.DurationMinutes,
		PassingScore:    *r.PassingScore,
		MaxAttempts:     &maxAttempts,
		PackageID:       pkg,
	}
}

// PublishRequest toggles the publication flag of an exam.
type PublishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// ExamDetail is an exam with its ordered questions and options, including
// the correct flags. It never leaves the server while a session is running.
type ExamDetail struct {
	Exam      Exam       `json:"exam"`
	Questions []Question `json:"questions"`
}

// ExamPaper is the participant-facing exam detail (no correct answers).
type ExamPaper struct {
	Exam      Exam                     `json:"exam"`
	Questions []QuestionForParticipant `json:"questions"`
}

// Paper strips correct flags and explanations from the detail.
func (d *ExamDetail) Paper() *ExamPaper {
	questions := make([]QuestionForParticipant, len(d.Questions))
	for i, q := range d.Questions {
		opts := make([]OptionForParticipant, len(q.Options))
		for j, o := range q.Options {
			opts[j] = OptionForParticipant{ID: o.ID, OptionText: o.OptionText}
		}
		questions[i] = QuestionForParticipant{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Order:        q.Order,
			Options:      opts,
		}
	}
	return &ExamPaper{Exam: d.Exam, Questions: questions}
}

// QuestionIDs returns the question identities in presentation order.
func (p *ExamPaper) QuestionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.Questions))
	for i, q := range p.Questions {
		ids[i] = q.ID
	}
	return ids
}

// DashboardStats summarizes the portal for the admin dashboard.
type DashboardStats struct {
	TotalExams         int `json:"total_exams"`
	PublishedExams     int `json:"published_exams"`
	TotalQuestions     int `json:"total_questions"`
	SessionsInProgress int `json:"sessions_in_progress"`
	CompletedResults   int `json:"completed_results"`
}
