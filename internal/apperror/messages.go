package apperror

// Client-facing messages. Clients match on these strings, so they are kept
// stable.
const (
	MsgUserMissing    = "User missing from request."
	MsgUserNotFound   = "No such user exists."
	MsgWrongPassword  = "The given password was incorrect."
	MsgValidation     = "Validation error."
	MsgInvalidRoute   = "Invalid route."
	MsgInternal       = "Internal system error."
	MsgUnsupportedOpt = "Unsupported update option."
	MsgUnacceptableID = "The supplied ID is not acceptable."
	MsgHospitalAbsent = "The requested hospital was not found in the database."

	MsgMissingProviderID = "Missing the required 'providerId' field."
	MsgMissingUsername   = "Missing the required 'username' field."
	MsgMissingPassword   = "Missing the required 'password' field."
	MsgMissingEmail      = "Missing the required 'email' field."
	MsgMissingRole       = "Missing the required 'role' field."

	MsgNoAccessToken      = "Access token not generated."
	MsgNoRefreshToken     = "Refresh token not generated."
	MsgMissingExpDate     = "Missing expiration date in token."
	MsgMissingRefreshParm = "Missing refresh token parameter."
	MsgMalformedToken     = "Malformed token value."
	MsgTokenNotFound      = "No such token exists."
	MsgTokenExpired       = "Token is expired."
	MsgTokenInvalid       = "Token is invalid."
	MsgTokenMismatch      = "Token mismatch."
)
