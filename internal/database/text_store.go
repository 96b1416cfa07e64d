package database

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"help112-bot/internal/database/models"

	"github.com/sirupsen/logrus"
)

const (
	// NoneSentinel marks an absent optional field in the text file.
	NoneSentinel = "None"

	textFieldSep = "|"
	// id|handle|given|family|registered|last_activity|commands|blocked
	textBaseFields = 8
	// base fields followed by warnings|block_reason|block_date
	textExtendedFields = 11
	// longer lines are skipped as malformed
	maxTextLineBytes = 1024 * 1024
)

var textTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

var textValueReplacer = strings.NewReplacer(textFieldSep, " ", "\r", " ", "\n", " ")

// TextFile stores one user per line with pipe separated fields.
type TextFile struct {
	path   string
	logger logrus.FieldLogger
}

// NewTextFile creates a line oriented record file at path.
func NewTextFile(path string, logger logrus.FieldLogger) *TextFile {
	return &TextFile{
		path:   path,
		logger: logger.WithField("file", path),
	}
}

// Kind implements RecordFile.
func (f *TextFile) Kind() models.StorageKind {
	return models.StorageTextFile
}

// Path returns the file location.
func (f *TextFile) Path() string {
	return f.path
}

// LoadAll parses every line of the file. Malformed lines are logged and skipped.
func (f *TextFile) LoadAll(ctx context.Context) (map[int64]*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[int64]*models.User{}, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	users := make(map[int64]*models.User)
	reader := bufio.NewReader(file)
	for lineNo := 1; ; lineNo++ {
		raw, tooLong, err := readTextLine(reader)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
		}
		line := strings.TrimSpace(string(raw))
		switch {
		case tooLong:
			f.logger.WithField("line", lineNo).Warn("Skipping oversized user record")
		case line != "":
			user, perr := ParseTextRecord(line)
			if perr != nil {
				f.logger.WithError(perr).WithField("line", lineNo).Warn("Skipping malformed user record")
			} else {
				users[user.UserID] = user
			}
		}
		if errors.Is(err, io.EOF) {
			return users, nil
		}
	}
}

// readTextLine returns the next line without its terminator. Lines longer than
// maxTextLineBytes are consumed to the end and reported as tooLong.
func readTextLine(r *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, isPrefix, rerr := r.ReadLine()
		if rerr != nil {
			return line, tooLong, rerr
		}
		if !tooLong {
			if len(line)+len(chunk) > maxTextLineBytes {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

// SaveAll rewrites the whole file, one line per user ordered by id.
func (f *TextFile) SaveAll(ctx context.Context, users map[int64]*models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, id := range slices.Sorted(maps.Keys(users)) {
		buf.WriteString(FormatTextRecord(users[id]))
		buf.WriteByte('\n')
	}
	return writeFileAtomic(f.path, buf.Bytes())
}

// FormatTextRecord renders a user as one line without the trailing newline.
func FormatTextRecord(u *models.User) string {
	fields := []string{
		strconv.FormatInt(u.UserID, 10),
		formatOptional(u.Username),
		formatOptional(u.FirstName),
		formatOptional(u.LastName),
		u.RegistrationDate.Format(time.RFC3339Nano),
		u.LastActivity.Format(time.RFC3339Nano),
		strconv.FormatInt(u.CommandCount, 10),
		formatBool(u.IsBlocked),
		strconv.FormatInt(u.WarningsCount, 10),
		formatOptional(u.BlockReason),
		NoneSentinel,
	}
	if u.BlockDate != nil {
		fields[10] = u.BlockDate.Format(time.RFC3339Nano)
	}
	return strings.Join(fields, textFieldSep)
}

// ParseTextRecord parses one line produced by FormatTextRecord. Lines carrying
// only the eight base fields are accepted as well.
func ParseTextRecord(line string) (*models.User, error) {
	fields := strings.Split(line, textFieldSep)
	if len(fields) != textBaseFields && len(fields) != textExtendedFields {
		return nil, fmt.Errorf("expected %d or %d fields, got %d", textBaseFields, textExtendedFields, len(fields))
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", fields[0], err)
	}
	registered, err := parseTextTime(fields[4])
	if err != nil {
		return nil, fmt.Errorf("invalid registration date: %w", err)
	}
	lastActivity, err := parseTextTime(fields[5])
	if err != nil {
		return nil, fmt.Errorf("invalid last activity: %w", err)
	}
	commands, err := strconv.ParseInt(fields[6], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid command count %q: %w", fields[6], err)
	}
	blocked, err := strconv.ParseBool(fields[7])
	if err != nil {
		return nil, fmt.Errorf("invalid blocked flag %q: %w", fields[7], err)
	}

	user := &models.User{
		UserID:           id,
		Username:         parseOptional(fields[1]),
		FirstName:        parseOptional(fields[2]),
		LastName:         parseOptional(fields[3]),
		RegistrationDate: registered,
		LastActivity:     lastActivity,
		CommandCount:     commands,
		IsBlocked:        blocked,
	}

	if len(fields) == textExtendedFields {
		warnings, err := strconv.ParseInt(fields[8], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid warnings count %q: %w", fields[8], err)
		}
		user.WarningsCount = warnings
		user.BlockReason = parseOptional(fields[9])
		if fields[10] != NoneSentinel {
			blockDate, err := parseTextTime(fields[10])
			if err != nil {
				return nil, fmt.Errorf("invalid block date: %w", err)
			}
			user.BlockDate = &blockDate
		}
	}

	// block metadata exists iff the user is blocked
	if !user.IsBlocked {
		user.BlockReason = nil
		user.BlockDate = nil
	} else {
		if user.BlockReason == nil {
			reason := models.DefaultBlockReason
			user.BlockReason = &reason
		}
		if user.BlockDate == nil {
			at := user.LastActivity
			user.BlockDate = &at
		}
	}
	return user, nil
}

func formatOptional(s *string) string {
	if s == nil {
		return NoneSentinel
	}
	return textValueReplacer.Replace(*s)
}

func parseOptional(s string) *string {
	if s == NoneSentinel {
		return nil
	}
	return &s
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseTextTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range textTimeLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
