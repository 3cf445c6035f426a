package webhook

// GitHub webhook event types

type IssueCommentEvent struct {
	Action     string     `json:"action"`
	Issue      Issue      `json:"issue"`
	Comment    Comment    `json:"comment"`
	Repository Repository `json:"repository"`
	Sender     User       `json:"sender"`
}

type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

type Comment struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	User      User   `json:"user"`
	CreatedAt string `json:"created_at"`
}

type Repository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Owner         User   `json:"owner"`
	Name          string `json:"name"`
}

type User struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// forwardedEvent is the envelope sent to globally configured forward targets
type forwardedEvent struct {
	Event           string      `json:"event"`
	Action          string      `json:"action,omitempty"`
	Sender          interface{} `json:"sender,omitempty"`
	Repository      interface{} `json:"repository,omitempty"`
	OriginalPayload interface{} `json:"original_payload"`
}

// forwardedComment is the trimmed envelope sent to comment-scoped targets
type forwardedComment struct {
	Event      string            `json:"event"`
	Action     string            `json:"action"`
	Repository forwardedRepo     `json:"repository"`
	Issue      forwardedIssue    `json:"issue"`
	Comment    forwardedCmtEntry `json:"comment"`
}

type forwardedRepo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    string `json:"owner"`
}

type forwardedIssue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

type forwardedCmtEntry struct {
	ID        int64  `json:"id"`
	Body      string `json:"body"`
	User      string `json:"user"`
	CreatedAt string `json:"created_at"`
}
