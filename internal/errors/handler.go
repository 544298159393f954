package errors

import (
	"context"
	"errors"
	"log/slog"

	"pbinstall/internal/ui"
)

const (
	// SupportContact is printed after every aborted installation.
	SupportContact = "Contact support@parabricks.com for troubleshooting"

	declinedHelp = `Installation Aborted

pbinstall -h to see available installation options
If you have not received EULA.txt or have any other questions
Contact Parabricks-Support@nvidia.com for any questions`
)

// Exit codes returned by Handle.
const (
	ExitOK    = 0
	ExitAbort = 1
)

// ErrorHandler is the single place where a failed run is reported to the
// operator and recorded in the install log.
type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
}

func NewErrorHandler(logger *slog.Logger, console *ui.Console) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if console == nil {
		console = ui.NewConsole()
	}
	return &ErrorHandler{
		logger:  logger,
		console: console,
	}
}

// Handle reports err and returns the process exit code for it.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return ExitOK
	}

	if IsDeclined(err) {
		h.logger.Info("Installation declined by operator", "step", err.Error())
		h.console.Println("")
		h.console.Println(declinedHelp)
		return ExitOK
	}

	var installErr *InstallError
	if errors.As(err, &installErr) {
		h.handleInstallError(installErr)
	} else {
		h.handleGenericError(err)
	}

	h.console.PrintInfo(SupportContact)
	return ExitAbort
}

func (h *ErrorHandler) handleInstallError(err *InstallError) {
	h.logStructuredError(err)

	message := h.console.FormatErrorMessage(err.Context, err.Cause, err.Suggestion)
	h.console.PrintError(message)
}

func (h *ErrorHandler) handleGenericError(err error) {
	h.logger.Error("Unhandled error occurred",
		"error", err.Error(),
		"type", "generic",
	)

	h.console.PrintError(err.Error())
}

func (h *ErrorHandler) logStructuredError(err *InstallError) {
	logAttrs := []slog.Attr{
		slog.String("error", err.Error()),
		slog.String("type", getErrorTypeName(err.Type)),
		slog.String("context", err.Context),
	}

	if err.Cause != "" {
		logAttrs = append(logAttrs, slog.String("cause", err.Cause))
	}

	if err.Suggestion != "" {
		logAttrs = append(logAttrs, slog.String("suggestion", err.Suggestion))
	}

	h.logger.LogAttrs(context.TODO(), slog.LevelError, "Installation aborted", logAttrs...)
}

func getErrorTypeName(errType error) string {
	switch errType {
	case ErrEnvironment:
		return "environment"
	case ErrPrecondition:
		return "precondition"
	case ErrRuntime:
		return "runtime"
	case ErrConfigInvalid:
		return "config_invalid"
	case ErrFileSystem:
		return "filesystem"
	case ErrDeclined:
		return "declined"
	default:
		return "unknown"
	}
}
