/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Messaging and Moderation Business Logic Errors
const (
	// ErrMessageEmpty indicates that a submitted message body was empty or whitespace-only.
	ErrMessageEmpty = 2101

	// ErrMessageTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageTooLong = 2102

	// ErrMessageNotPending indicates that a moderated message does not exist or has
	// already reached a terminal state (approved or rejected).
	ErrMessageNotPending = 2103

	// ErrSelfMessage indicates that a private message named its own sender as recipient.
	ErrSelfMessage = 2104

	// ErrRecipientNotFound indicates that the private message sender or recipient does not exist.
	ErrRecipientNotFound = 2105
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates that the request requires a signed-in user.
	ErrUnauthorized = 3001

	// ErrNotAdmin indicates that a moderation or management action was attempted
	// by a non-admin user.
	ErrNotAdmin = 3002

	// ErrAlreadyLoggedIn indicates that an already authenticated client attempted to register or log in.
	ErrAlreadyLoggedIn = 3003

	// ErrInvalidUsername indicates that the supplied username failed format validation.
	ErrInvalidUsername = 3004

	// ErrInvalidPassword indicates that the supplied password failed length validation.
	ErrInvalidPassword = 3005

	// ErrUserAlreadyExists indicates that the requested username is already taken.
	ErrUserAlreadyExists = 3006

	// ErrInvalidCredentials indicates a failed username/password check during login.
	ErrInvalidCredentials = 3007

	// ErrUserNotFound indicates that the referenced user account does not exist or was deleted.
	ErrUserNotFound = 3008

	// ErrSessionReplaced indicates that the current connection was superseded by a
	// newer connection from the same user.
	ErrSessionReplaced = 3009
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
