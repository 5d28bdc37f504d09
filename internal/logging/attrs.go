package logging

import "log/slog"

func UserID[T ~string](id T) slog.Attr {
	return slog.String("user_id", string(id))
}

func WorkflowID[T ~string](id T) slog.Attr {
	return slog.String("workflow_id", string(id))
}

func TaskID[T ~string](id T) slog.Attr {
	return slog.String("task_id", string(id))
}

func Role[T ~string](role T) slog.Attr {
	return slog.String("role", string(role))
}

func Version[T ~string](v T) slog.Attr {
	return slog.String("app_version", string(v))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}
