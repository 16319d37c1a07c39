package i18n

// Message keys.
const (
	KeyGateRateLimited        = "gate.rate_limited"
	KeyGateEmailInvalid       = "gate.email.invalid"
	KeyGateEmailInvalidDomain = "gate.email.invalid_domain"
	KeyGateEmailDisposable    = "gate.email.disposable"
	KeyGateEmailNotAllowed    = "gate.email.not_allowed"
	KeyGateBotBlocked         = "gate.bot_blocked"
)

// AuthErrorKey maps an auth error code to its catalog key.
func AuthErrorKey(code string) string {
	return "auth.error." + code
}

var ptBR = map[string]string{
	KeyGateRateLimited:        "Muitas tentativas. Tente novamente mais tarde.",
	KeyGateEmailInvalid:       "E-mail inválido",
	KeyGateEmailInvalidDomain: "O domínio do e-mail é inválido",
	KeyGateEmailDisposable:    "E-mail temporário não permitido",
	KeyGateEmailNotAllowed:    "E-mail não permitido",
	KeyGateBotBlocked:         "Acesso bloqueado por proteção anti-bot",

	"auth.error.INVALID_EMAIL_OR_PASSWORD":    "Email ou senha inválidos.",
	"auth.error.INVALID_PASSWORD":             "Senha inválida.",
	"auth.error.USER_ALREADY_EXISTS":          "Usuário já existe.",
	"auth.error.PASSWORD_TOO_SHORT":           "Senha muito curta.",
	"auth.error.PASSWORD_TOO_LONG":            "Senha muito longa.",
	"auth.error.INVALID_TOKEN":                "Token inválido ou expirado.",
	"auth.error.SESSION_EXPIRED":              "Sessão expirada. Faça login novamente.",
	"auth.error.CREDENTIAL_ACCOUNT_NOT_FOUND": "Conta sem senha cadastrada.",
	"auth.error.EMAIL_ALREADY_IN_USE":         "E-mail já está em uso.",
	"auth.error.USER_NOT_FOUND":               "Usuário não encontrado.",
	"auth.error.UNAUTHORIZED":                 "Não autorizado. Faça login novamente.",
	"auth.error.FORBIDDEN":                    "Acesso negado.",
	"auth.error.VALIDATION_FAILED":            "Dados inválidos.",
	"auth.error.INTERNAL_ERROR":               "Erro inesperado.",
	"auth.error.SESSION_NOT_FRESH":            "Sessão antiga. Faça login novamente para continuar.",
	"auth.error.FAILED_TO_CREATE_SESSION":     "Não foi possível criar a sessão.",
	"auth.error.NOT_FOUND":                    "Não encontrado.",

	"mail.welcome.subject":        "Bem-vindo(a)!",
	"mail.reset_password.subject": "Redefinição de senha",
	"mail.delete_account.subject": "Confirme a exclusão da sua conta",
}

var enUS = map[string]string{
	KeyGateRateLimited:        "Too many attempts. Please try again later.",
	KeyGateEmailInvalid:       "Invalid email",
	KeyGateEmailInvalidDomain: "The email domain is invalid",
	KeyGateEmailDisposable:    "Temporary email addresses are not allowed",
	KeyGateEmailNotAllowed:    "Email not allowed",
	KeyGateBotBlocked:         "Access blocked by anti-bot protection",

	"auth.error.INVALID_EMAIL_OR_PASSWORD":    "Invalid email or password.",
	"auth.error.INVALID_PASSWORD":             "Invalid password.",
	"auth.error.USER_ALREADY_EXISTS":          "User already exists.",
	"auth.error.PASSWORD_TOO_SHORT":           "Password too short.",
	"auth.error.PASSWORD_TOO_LONG":            "Password too long.",
	"auth.error.INVALID_TOKEN":                "Invalid or expired token.",
	"auth.error.SESSION_EXPIRED":              "Session expired. Please sign in again.",
	"auth.error.CREDENTIAL_ACCOUNT_NOT_FOUND": "This account has no password set.",
	"auth.error.EMAIL_ALREADY_IN_USE":         "Email is already in use.",
	"auth.error.USER_NOT_FOUND":               "User not found.",
	"auth.error.UNAUTHORIZED":                 "Unauthorized. Please sign in again.",
	"auth.error.FORBIDDEN":                    "Access denied.",
	"auth.error.VALIDATION_FAILED":            "Invalid input.",
	"auth.error.INTERNAL_ERROR":               "Unexpected error.",
	"auth.error.SESSION_NOT_FRESH":            "Session is too old. Sign in again to continue.",
	"auth.error.FAILED_TO_CREATE_SESSION":     "Could not create a session.",
	"auth.error.NOT_FOUND":                    "Not found.",

	"mail.welcome.subject":        "Welcome!",
	"mail.reset_password.subject": "Reset your password",
	"mail.delete_account.subject": "Confirm your account deletion",
}
