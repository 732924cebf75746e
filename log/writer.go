package log

// Writer receives formatted log messages. Write is only called
// for messages with a level greater or equal than Level().
type Writer interface {
	Write(LLevel, int, []byte) (int, error)
	Level() LLevel
}
