package contextstore

// Registration is a document the context store already holds. The ID is
// assigned by the store and is otherwise opaque.
type Registration struct {
	ID string `json:"_id"`
}

// ListResponse mirrors GET /api/v1/context/view/docs.
type ListResponse struct {
	Documents []Registration `json:"documents"`
}

// DeleteRequest is the body of POST /api/v1/context/delete. Deletion is by
// source document name, never by registration ID.
type DeleteRequest struct {
	Source string `json:"source"`
	ByDoc  bool   `json:"by_doc"`
	ByID   bool   `json:"by_id"`
}

// AddRequest is the body of POST /api/v1/context/add.
type AddRequest struct {
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	FileSize     int    `json:"fileSize"`
	LastModified string `json:"lastModified"`
	Content      string `json:"content"`
	Scope        string `json:"scope"`
}

const (
	listPath   = "/api/v1/context/view/docs"
	deletePath = "/api/v1/context/delete"
	addPath    = "/api/v1/context/add"
)
