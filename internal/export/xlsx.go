package export

import (
	"bytes"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/daddygpt/daddygpt-bot/internal/domain/authz"
	"github.com/daddygpt/daddygpt-bot/internal/domain/chatlog"
	"github.com/daddygpt/daddygpt-bot/internal/domain/prompts"
	"github.com/daddygpt/daddygpt-bot/internal/domain/settings"
	"github.com/daddygpt/daddygpt-bot/internal/domain/users"
	"github.com/daddygpt/daddygpt-bot/internal/errs"
)

// Marshal serializes a snapshot to an xlsx workbook, one sheet per
// table, header row first. Timestamps are stored as unix seconds.
func Marshal(s *Snapshot) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	write := func(name string, header []interface{}, rows [][]interface{}) error {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return err
		}
		for i, r := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			row := r
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return err
			}
		}
		return nil
	}

	type sheet struct {
		name   string
		header []interface{}
		rows   [][]interface{}
	}

	sheets := []sheet{
		{sheetSettings, []interface{}{"key", "value"}, settingRows(s.Settings)},
		{sheetAdmins, []interface{}{"user_id", "added_at"}, adminRows(s.Admins)},
		{sheetPendingAdmins, []interface{}{"username", "added_at"}, pendingAdminRows(s.PendingAdmins)},
		{sheetBans, []interface{}{"user_id", "username", "reason", "banned_at"}, banRows(s.Bans)},
		{sheetPendingBans, []interface{}{"username", "reason", "banned_at"}, pendingBanRows(s.PendingBans)},
		{sheetPrompts, []interface{}{"id", "prompt", "enabled", "created_at"}, promptRows(s.Prompts)},
		{sheetUsers, []interface{}{"user_id", "username", "first_name", "last_name", "first_seen", "last_seen"}, userRows(s.Users)},
		{sheetUserChanges, []interface{}{"id", "user_id", "field", "old_value", "new_value", "changed_at"}, changeRows(s.UserChanges)},
		{sheetMessages, []interface{}{"id", "chat_id", "chat_type", "user_id", "role", "text", "tg_message_id", "reply_to_tg_message_id", "created_at"}, messageRows(s.Messages)},
	}
	for _, sh := range sheets {
		if err := write(sh.name, sh.header, sh.rows); err != nil {
			return nil, errs.Export("build sheet "+sh.name, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, errs.Export("finalize workbook", err)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, errs.Export("write workbook", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a workbook produced by Marshal. Missing sheets are
// treated as empty tables; malformed cells fail the whole parse.
func Unmarshal(data []byte) (*Snapshot, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Export("open workbook (corrupted or not .xlsx)", err)
	}
	defer func() { _ = f.Close() }()

	s := &Snapshot{}
	for name, parse := range map[string]func(rows [][]string) error{
		sheetSettings:      func(rows [][]string) error { return parseSettings(rows, s) },
		sheetAdmins:        func(rows [][]string) error { return parseAdmins(rows, s) },
		sheetPendingAdmins: func(rows [][]string) error { return parsePendingAdmins(rows, s) },
		sheetBans:          func(rows [][]string) error { return parseBans(rows, s) },
		sheetPendingBans:   func(rows [][]string) error { return parsePendingBans(rows, s) },
		sheetPrompts:       func(rows [][]string) error { return parsePrompts(rows, s) },
		sheetUsers:         func(rows [][]string) error { return parseUsers(rows, s) },
		sheetUserChanges:   func(rows [][]string) error { return parseChanges(rows, s) },
		sheetMessages:      func(rows [][]string) error { return parseMessages(rows, s) },
	} {
		idx, err := f.GetSheetIndex(name)
		if err != nil || idx < 0 {
			continue
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, errs.Export("read sheet "+name, err)
		}
		if len(rows) < 2 {
			continue
		}
		if err := parse(rows[1:]); err != nil {
			return nil, errs.Export("parse sheet "+name, err)
		}
	}
	return s, nil
}

/*** ROW BUILDERS ***/

func settingRows(in []settings.Setting) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.Key, v.Value})
	}
	return out
}

func adminRows(in []authz.Admin) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.UserID, v.AddedAt.Unix()})
	}
	return out
}

func pendingAdminRows(in []authz.PendingAdmin) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.Username, v.AddedAt.Unix()})
	}
	return out
}

func banRows(in []authz.Ban) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.UserID, v.Username, v.Reason, v.BannedAt.Unix()})
	}
	return out
}

func pendingBanRows(in []authz.PendingBan) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.Username, v.Reason, v.BannedAt.Unix()})
	}
	return out
}

func promptRows(in []prompts.Prompt) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.ID, v.Text, boolCell(v.Enabled), v.CreatedAt.Unix()})
	}
	return out
}

func userRows(in []users.User) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.ID, v.Username, v.FirstName, v.LastName, v.FirstSeen.Unix(), v.LastSeen.Unix()})
	}
	return out
}

func changeRows(in []users.Change) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.ID, v.UserID, v.Field, v.OldValue, v.NewValue, v.ChangedAt.Unix()})
	}
	return out
}

func messageRows(in []chatlog.Message) [][]interface{} {
	out := make([][]interface{}, 0, len(in))
	for _, v := range in {
		out = append(out, []interface{}{v.ID, v.ChatID, v.ChatType, v.UserID, v.Role, v.Text,
			v.TGMessageID, v.ReplyToTGMessageID, v.CreatedAt.Unix()})
	}
	return out
}

func boolCell(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

/*** ROW PARSERS ***/

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func cellInt(row []string, i int) (int64, error) {
	v := cell(row, i)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func cellTime(row []string, i int) (time.Time, error) {
	n, err := cellInt(row, i)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0), nil
}

func parseSettings(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		s.Settings = append(s.Settings, settings.Setting{Key: cell(r, 0), Value: cell(r, 1)})
	}
	return nil
}

func parseAdmins(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		id, err := cellInt(r, 0)
		if err != nil {
			return err
		}
		at, err := cellTime(r, 1)
		if err != nil {
			return err
		}
		s.Admins = append(s.Admins, authz.Admin{UserID: id, AddedAt: at})
	}
	return nil
}

func parsePendingAdmins(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		at, err := cellTime(r, 1)
		if err != nil {
			return err
		}
		s.PendingAdmins = append(s.PendingAdmins, authz.PendingAdmin{Username: cell(r, 0), AddedAt: at})
	}
	return nil
}

func parseBans(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		id, err := cellInt(r, 0)
		if err != nil {
			return err
		}
		at, err := cellTime(r, 3)
		if err != nil {
			return err
		}
		s.Bans = append(s.Bans, authz.Ban{UserID: id, Username: cell(r, 1), Reason: cell(r, 2), BannedAt: at})
	}
	return nil
}

func parsePendingBans(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		at, err := cellTime(r, 2)
		if err != nil {
			return err
		}
		s.PendingBans = append(s.PendingBans, authz.PendingBan{Username: cell(r, 0), Reason: cell(r, 1), BannedAt: at})
	}
	return nil
}

func parsePrompts(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		id, err := cellInt(r, 0)
		if err != nil {
			return err
		}
		enabled, err := cellInt(r, 2)
		if err != nil {
			return err
		}
		at, err := cellTime(r, 3)
		if err != nil {
			return err
		}
		s.Prompts = append(s.Prompts, prompts.Prompt{ID: id, Text: cell(r, 1), Enabled: enabled == 1, CreatedAt: at})
	}
	return nil
}

func parseUsers(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		id, err := cellInt(r, 0)
		if err != nil {
			return err
		}
		first, err := cellTime(r, 4)
		if err != nil {
			return err
		}
		last, err := cellTime(r, 5)
		if err != nil {
			return err
		}
		s.Users = append(s.Users, users.User{
			ID: id, Username: cell(r, 1), FirstName: cell(r, 2), LastName: cell(r, 3),
			FirstSeen: first, LastSeen: last,
		})
	}
	return nil
}

func parseChanges(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		id, err := cellInt(r, 0)
		if err != nil {
			return err
		}
		userID, err := cellInt(r, 1)
		if err != nil {
			return err
		}
		at, err := cellTime(r, 5)
		if err != nil {
			return err
		}
		s.UserChanges = append(s.UserChanges, users.Change{
			ID: id, UserID: userID, Field: cell(r, 2), OldValue: cell(r, 3), NewValue: cell(r, 4), ChangedAt: at,
		})
	}
	return nil
}

func parseMessages(rows [][]string, s *Snapshot) error {
	for _, r := range rows {
		id, err := cellInt(r, 0)
		if err != nil {
			return err
		}
		chatID, err := cellInt(r, 1)
		if err != nil {
			return err
		}
		userID, err := cellInt(r, 3)
		if err != nil {
			return err
		}
		tgID, err := cellInt(r, 6)
		if err != nil {
			return err
		}
		replyTo, err := cellInt(r, 7)
		if err != nil {
			return err
		}
		at, err := cellTime(r, 8)
		if err != nil {
			return err
		}
		s.Messages = append(s.Messages, chatlog.Message{
			ID: id, ChatID: chatID, ChatType: cell(r, 2), UserID: userID,
			Role: cell(r, 4), Text: cell(r, 5), TGMessageID: tgID, ReplyToTGMessageID: replyTo,
			CreatedAt: at,
		})
	}
	return nil
}
