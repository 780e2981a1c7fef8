package api

// ArtifactKind identifies the kind of artifact a step produces.
type ArtifactKind string

const (
	ArtifactTicket   ArtifactKind = "ticket"
	ArtifactImplPlan ArtifactKind = "implPlan"
	ArtifactQAPlan   ArtifactKind = "qaPlan"
	ArtifactBranch   ArtifactKind = "branch"
)

// ArtifactReference identifies an artifact created in a remote system.
// References are immutable once created.
type ArtifactReference struct {
	Kind ArtifactKind `json:"kind"`
	ID   string       `json:"id,omitempty"`
	Key  string       `json:"key,omitempty"`
	URL  string       `json:"url,omitempty"`
	// Title is the human readable name used when linking to the artifact.
	Title string `json:"title,omitempty"`
}

// StepID names one step of the orchestration graph.
type StepID string

const (
	StepTicket   StepID = "A"
	StepImplPlan StepID = "B"
	StepQAPlan   StepID = "E"
	StepLinks    StepID = "C"
	StepBranch   StepID = "D"
)

// String returns a readable step name for logs and metrics.
func (s StepID) String() string {
	switch s {
	case StepTicket:
		return "ticket"
	case StepImplPlan:
		return "impl_plan"
	case StepQAPlan:
		return "qa_plan"
	case StepLinks:
		return "ticket_links"
	case StepBranch:
		return "branch"
	default:
		return string(s)
	}
}

// StepStatus is the terminal status of a step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// AttachmentMethod records which path attached an image.
type AttachmentMethod string

const (
	AttachDirect   AttachmentMethod = "direct"
	AttachFallback AttachmentMethod = "fallback"
	AttachNone     AttachmentMethod = "none"
)

// AttachmentOutcome is the result of attaching an image to an artifact.
// A failed attachment never fails the owning step.
type AttachmentOutcome struct {
	Attached bool             `json:"attached"`
	Method   AttachmentMethod `json:"method"`
	Error    string           `json:"error,omitempty"`
}

// UpdateAction names a follow-up modification of an already created artifact.
type UpdateAction string

const (
	UpdateBackpatch        UpdateAction = "backpatch"
	UpdateRemoteLink       UpdateAction = "remote_link"
	UpdateRelatedResources UpdateAction = "related_resources"
)

// UpdateResult is the outcome of a follow-up modification. Its failure is
// reported here and does not change the status of the owning step.
type UpdateResult struct {
	Action UpdateAction `json:"action"`
	Target string       `json:"target,omitempty"`
	Status StepStatus   `json:"status"`
	Error  *ErrorInfo   `json:"error,omitempty"`
}

// StepResult is the outcome of one orchestration step.
type StepResult struct {
	Step       StepID             `json:"step"`
	Status     StepStatus         `json:"status"`
	Reference  *ArtifactReference `json:"reference,omitempty"`
	URL        string             `json:"url,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Error      *ErrorInfo         `json:"error,omitempty"`
	Attachment *AttachmentOutcome `json:"attachment,omitempty"`
	Updates    []UpdateResult     `json:"updates,omitempty"`
}

// Succeeded reports whether the step produced its artifact.
func (r StepResult) Succeeded() bool {
	return r.Status == StepSuccess && r.Reference != nil
}

// OrchestrationResult is the terminal snapshot returned to the caller.
// All four keys are always present.
type OrchestrationResult struct {
	Jira StepResult `json:"jira"`
	Wiki StepResult `json:"wiki"`
	QA   StepResult `json:"qa"`
	Git  StepResult `json:"git"`
}

// SkippedResult returns a result in which every step is skipped for the
// given reason.
func SkippedResult(reason string) *OrchestrationResult {
	return &OrchestrationResult{
		Jira: StepResult{Step: StepTicket, Status: StepSkipped, Reason: reason},
		Wiki: StepResult{Step: StepImplPlan, Status: StepSkipped, Reason: reason},
		QA:   StepResult{Step: StepQAPlan, Status: StepSkipped, Reason: reason},
		Git:  StepResult{Step: StepBranch, Status: StepSkipped, Reason: reason},
	}
}

// FailedResult returns a result in which every step failed with err.
func FailedResult(info *ErrorInfo) *OrchestrationResult {
	return &OrchestrationResult{
		Jira: StepResult{Step: StepTicket, Status: StepFailed, Error: info},
		Wiki: StepResult{Step: StepImplPlan, Status: StepFailed, Error: info},
		QA:   StepResult{Step: StepQAPlan, Status: StepFailed, Error: info},
		Git:  StepResult{Step: StepBranch, Status: StepFailed, Error: info},
	}
}

// Envelope nests the orchestration result under metadata.orchestration, the
// shape expected by the calling layer.
type Envelope struct {
	Metadata EnvelopeMetadata `json:"metadata"`
}

// EnvelopeMetadata carries the orchestration result and the run identifier.
type EnvelopeMetadata struct {
	RunID         string               `json:"run_id,omitempty"`
	Orchestration *OrchestrationResult `json:"orchestration"`
}

// NewEnvelope wraps a result for the calling layer.
func NewEnvelope(runID string, result *OrchestrationResult) Envelope {
	return Envelope{Metadata: EnvelopeMetadata{RunID: runID, Orchestration: result}}
}
