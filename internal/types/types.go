package types

// Worker operations
const (
	OpLocate = "locate"
	OpEncode = "encode"
)

// Failure kinds reported by the worker
const (
	KindUnreadable = "unreadable"
	KindEncode     = "encode" // a face was found but no encoding could be computed
	KindInternal   = "internal"
)

// Request is one message sent to the Python worker on stdin
type Request struct {
	Op    string  `json:"op"`
	Path  string  `json:"path"`
	Model string  `json:"model,omitempty"` // "hog" or "cnn", locate only
	Boxes [][]int `json:"boxes,omitempty"` // [top, right, bottom, left], encode only
}

// Response matches the JSON structure coming back from the worker on FD 3
type Response struct {
	OK    bool        `json:"ok"`
	Kind  string      `json:"kind,omitempty"`
	Error string      `json:"error,omitempty"`
	Boxes [][]int     `json:"boxes,omitempty"`
	Vecs  [][]float64 `json:"vecs,omitempty"` // 128-d face encodings
}
