package fhir

// IssueSeverityError is the severity of every issue this server reports.
const IssueSeverityError = "error"

// OperationOutcome issue type codes used by this server.
const (
	IssueTypeNotFound  = "not-found"
	IssueTypeException = "exception"
	IssueTypeTimeout   = "timeout"
	IssueTypeInvalid   = "invalid"
	IssueTypeThrottled = "throttled"
	IssueTypeTooLong   = "too-long"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

// ErrorOutcome wraps a failure message in an "exception" issue. It is used
// for validation failures (400) and store failures (500) alike.
func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeException, diagnostics)
}

// NotFoundOutcome reports a missing resource of the given kind.
func NotFoundOutcome(resourceType string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, resourceType+" not found")
}

// RouteNotFoundOutcome reports a request that matched no route.
func RouteNotFoundOutcome(method, path string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotFound, "Resource not found: "+method+" "+path)
}

// TimeoutOutcome reports a request that ran past its deadline.
func TimeoutOutcome() *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeTimeout, "Request processing exceeded the allowed time limit")
}
