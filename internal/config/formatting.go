package config

import "go.lsp.dev/protocol"

// FormattingOptions maps editor settings onto the protocol formatting-options
// shape, field for field. insertFinalNewline and trimFinalNewlines both
// follow EnsureNewlineAtEOFOnSave, matching the host editor's single switch.
func FormattingOptions(s Settings) protocol.FormattingOptions {
	return protocol.FormattingOptions{
		TabSize:                uint32(s.Editor.TabSize),
		InsertSpaces:           s.Editor.TranslateTabsToSpaces,
		TrimTrailingWhitespace: s.Editor.TrimTrailingWhiteSpaceOnSave.Enabled(),
		InsertFinalNewline:     s.Editor.EnsureNewlineAtEOFOnSave,
		TrimFinalNewlines:      s.Editor.EnsureNewlineAtEOFOnSave,
	}
}
