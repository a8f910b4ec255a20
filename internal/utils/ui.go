package utils

import "github.com/go-telegram/bot/models"

type Button struct {
	Text         string
	CallbackData string
}

// BuildInlineKeyboard lays buttons out perRow to a row.
func BuildInlineKeyboard(buttons []Button, perRow int) *models.InlineKeyboardMarkup {
	if perRow <= 0 {
		perRow = 1
	}
	rows := make([][]models.InlineKeyboardButton, 0, (len(buttons)+perRow-1)/perRow)
	row := make([]models.InlineKeyboardButton, 0, perRow)
	for i, button := range buttons {
		if i > 0 && i%perRow == 0 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, perRow)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         button.Text,
			CallbackData: button.CallbackData,
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// Rows builds a keyboard with one explicit row per argument.
func Rows(rows ...[]Button) *models.InlineKeyboardMarkup {
	out := make([][]models.InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		if len(r) == 0 {
			continue
		}
		line := make([]models.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			line = append(line, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.CallbackData})
		}
		out = append(out, line)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: out}
}
