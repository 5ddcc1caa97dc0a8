package ledger

import "encoding/json"

// Object error codes reported by the read service.
const (
	ErrCodeNotExists = "notExists"
	ErrCodeDeleted   = "deleted"
)

// DataTypeMoveObject is the content data type of struct objects.
const DataTypeMoveObject = "moveObject"

// ObjectResponse is the read service's answer for one object id: either Data
// or Error is set.
type ObjectResponse struct {
	Data  *ObjectData  `json:"data,omitempty"`
	Error *ObjectError `json:"error,omitempty"`
}

type ObjectData struct {
	ObjectID string          `json:"objectId"`
	Version  string          `json:"version"`
	Digest   string          `json:"digest"`
	Type     string          `json:"type,omitempty"`
	Owner    json.RawMessage `json:"owner,omitempty"`
	Content  *ObjectContent  `json:"content,omitempty"`
}

// ObjectContent is the parsed Move content. Fields stay raw; package decode
// turns them into typed values.
type ObjectContent struct {
	DataType          string          `json:"dataType"`
	Type              string          `json:"type,omitempty"`
	HasPublicTransfer bool            `json:"hasPublicTransfer"`
	Fields            json.RawMessage `json:"fields,omitempty"`
}

type ObjectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
	Version  string `json:"version,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

// NotFound reports whether the object does not exist or has been deleted.
func (r ObjectResponse) NotFound() bool {
	if r.Error != nil {
		return r.Error.Code == ErrCodeNotExists || r.Error.Code == ErrCodeDeleted
	}
	return r.Data == nil
}

// ID is the object id the response is about, when known.
func (r ObjectResponse) ID() string {
	if r.Data != nil {
		return r.Data.ObjectID
	}
	if r.Error != nil {
		return r.Error.ObjectID
	}
	return ""
}

// MissingObject returns a not-found response for id.
func MissingObject(id string) ObjectResponse {
	return ObjectResponse{Error: &ObjectError{Code: ErrCodeNotExists, ObjectID: id}}
}
