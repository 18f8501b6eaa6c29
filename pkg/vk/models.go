package vk

import "encoding/json"

// envelope is the outer shape of every VK API response: either a response
// payload or an error object, never both.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// APIError is the error object VK returns inside an otherwise well-formed
// response body.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

// GroupPayload is the wire shape of a groups.getById item
type GroupPayload struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	ScreenName  string           `json:"screen_name"`
	IsClosed    int              `json:"is_closed"`
	Description string           `json:"description"`
	Contacts    []ContactPayload `json:"contacts"`
}

// ContactPayload is a single entry of a group's declared contact list.
// UserID is 0 when the entry is a bare email or phone contact.
type ContactPayload struct {
	UserID      int64  `json:"user_id"`
	Description string `json:"desc"`
}

// UserPayload is the wire shape of a users.get item. Deactivated is a string
// ("deleted", "banned") and empty for active profiles.
type UserPayload struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Deactivated string `json:"deactivated"`
	IsClosed    int    `json:"is_closed"`
	About       string `json:"about"`
}

// WallPage is one page of a group's wall
type WallPage struct {
	Count int           `json:"count"`
	Items []PostPayload `json:"items"`
}

// PostPayload is the wire shape of a wall.get item. The counter blocks are
// pointers so that an item missing one of them can be detected and skipped
// instead of silently zeroed.
type PostPayload struct {
	ID          int64         `json:"id"`
	Date        int64         `json:"date"`
	MarkedAsAds int           `json:"marked_as_ads"`
	PostType    string        `json:"post_type"`
	Text        string        `json:"text"`
	Likes       *CountPayload `json:"likes"`
	Reposts     *CountPayload `json:"reposts"`
	Views       *CountPayload `json:"views"`
	Comments    *CountPayload `json:"comments"`
}

// CountPayload is VK's wrapper around an engagement counter
type CountPayload struct {
	Count int `json:"count"`
}

// CommentPage is one page of a post's comments
type CommentPage struct {
	Count int              `json:"count"`
	Items []CommentPayload `json:"items"`
}

// CommentPayload is the wire shape of a wall.getComments item. FromID is 0
// for anonymous comments.
type CommentPayload struct {
	ID     int64  `json:"id"`
	FromID int64  `json:"from_id"`
	PostID int64  `json:"post_id"`
	Date   int64  `json:"date"`
	Text   string `json:"text"`
}
