package media

import (
	"path/filepath"
	"strings"
)

// mimeExtensions maps the MIME types Telegram commonly reports to a
// canonical file extension.
var mimeExtensions = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"video/mp4":        ".mp4",
	"video/quicktime":  ".mov",
	"video/webm":       ".webm",
	"audio/mpeg":       ".mp3",
	"audio/mp4":        ".m4a",
	"audio/ogg":        ".ogg",
	"audio/flac":       ".flac",
	"audio/x-wav":      ".wav",
	"application/pdf":  ".pdf",
	"application/zip":  ".zip",
	"application/gzip": ".gz",
	"text/plain":       ".txt",
}

// knownExtensions are the filename suffixes accepted as-is when the MIME
// type is unrecognized.
var knownExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
	".mp3": true, ".m4a": true, ".ogg": true, ".opus": true, ".flac": true, ".wav": true,
	".pdf": true, ".zip": true, ".gz": true, ".rar": true, ".7z": true,
	".txt": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
}

// defaultExtensions are the per-kind fallbacks used when neither the MIME
// type nor the filename yields anything usable.
var defaultExtensions = map[Kind]string{
	KindPhoto:     ".jpg",
	KindVideo:     ".mp4",
	KindVideoNote: ".mp4",
	KindVoice:     ".ogg",
	KindAudio:     ".mp3",
	KindAnimation: ".gif",
	KindSticker:   ".webp",
	KindDocument:  ".bin",
}

// ResolveExtension returns the file extension for an attachment, trying the
// MIME type first, then the original filename suffix, then a kind-specific
// default.
func ResolveExtension(mimeType, fileName string, kind Kind) string {
	if ext, ok := mimeExtensions[strings.ToLower(mimeType)]; ok {
		return ext
	}
	if ext := strings.ToLower(filepath.Ext(fileName)); knownExtensions[ext] {
		return ext
	}
	return defaultExtensions[kind]
}
