package trace

// Span attribute keys used by the API client. These constants define the
// semantic conventions for studyhall spans.
const (
	AttrChatID     = "chat.id"
	AttrUserID     = "user.id"
	AttrCourseName = "course.name"
	AttrRequestID  = "request.id"
	AttrHTTPMethod = "http.method"
	AttrHTTPPath   = "http.path"
	AttrHTTPStatus = "http.status_code"
	AttrErrorKind  = "error.kind"
)

// Span name prefix for backend round-trips.
const SpanPrefixAPI = "api."
