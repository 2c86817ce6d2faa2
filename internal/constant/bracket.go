package constant

import "fmt"

const (
	BracketStreamName         = "bracket"
	BracketStreamSubjectAll   = "bracket.*"
	BracketStreamSubjectCycle = "bracket.cycle"

	BracketJournalDatabase = "bracket_bot"
	BracketRunLockRedis    = "bracket_bot"
)

func GetBracketRunLockKey(exchange string, accountIndex int64, marketID int) string {
	return fmt.Sprintf("bracket-bot:%s:%d:%d", exchange, accountIndex, marketID)
}
