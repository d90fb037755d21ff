package command

import (
	"bufio"
	"errors"
	"strconv"
	"strings"
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// LeaderboardArgs carries an optional entry limit; 0 means use the
// configured default.
type LeaderboardArgs struct {
	Limit int
}

func (args *LeaderboardArgs) ParseArg(s string) error {
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Split(bufio.ScanWords)

	if ok := scanner.Scan(); !ok {
		return scanner.Err()
	}

	limit, err := strconv.Atoi(scanner.Text())
	if err != nil {
		return ErrInvalidArgument
	}
	if limit < 1 {
		return ErrInvalidArgument
	}

	args.Limit = limit
	return nil
}

// CheckKarmaArgs has no textual arguments; the target user comes from the
// message mentions.
type CheckKarmaArgs struct{}

func (args *CheckKarmaArgs) ParseArg(s string) error {
	return nil
}

// SetConfigArgs is a key/value pair for a configuration change.
type SetConfigArgs struct {
	Key   string
	Value string
}

func (args *SetConfigArgs) ParseArg(s string) error {
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Split(bufio.ScanWords)

	if ok := scanner.Scan(); !ok {
		if err := scanner.Err(); err != nil {
			return err
		}
		return ErrMissingArgument
	}
	args.Key = scanner.Text()

	if ok := scanner.Scan(); !ok {
		if err := scanner.Err(); err != nil {
			return err
		}
		return ErrMissingArgument
	}
	args.Value = scanner.Text()

	return nil
}

// RescanArgs takes no arguments.
type RescanArgs struct{}

func (args *RescanArgs) ParseArg(s string) error {
	return nil
}
