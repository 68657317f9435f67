package logging

import "log/slog"

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func ConnID(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

func ChatID(id string) slog.Attr {
	return slog.String("chat_id", id)
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
