package log

import "log/slog"

func JobID[T ~string](id T) slog.Attr {
	return slog.String("job_id", string(id))
}

func WorkflowID[T ~string](id T) slog.Attr {
	return slog.String("workflow_id", string(id))
}

func Action[T ~string](name T) slog.Attr {
	return slog.String("action", string(name))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Event[T ~string](typ T) slog.Attr {
	return slog.String("event_type", string(typ))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
