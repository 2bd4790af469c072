package httpapi

import "vanban_gateway/internal/models"

// kindLabel maps an operation kind to its display label. Presentation
// metadata stays at the HTTP boundary; the metering core only stores the tag.
func kindLabel(kind models.OperationKind) string {
	switch kind {
	case models.OpGenerate:
		return "Tạo văn bản"
	case models.OpExtract:
		return "Trích xuất tài liệu"
	case models.OpReadText:
		return "Đọc text"
	case models.OpStream:
		return "Streaming"
	default:
		return "Không xác định"
	}
}
