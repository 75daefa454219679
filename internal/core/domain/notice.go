package domain

import (
	"time"

	"github.com/google/uuid"
)

type NoticeKind string

const (
	NoticeAdded                NoticeKind = "added"
	NoticeRemovalFailed        NoticeKind = "removal_failed"
	NoticeAdditionFailed       NoticeKind = "addition_failed"
	NoticeOutOfStock           NoticeKind = "out_of_stock"
	NoticeQuantityUpdateFailed NoticeKind = "quantity_update_failed"
)

type NoticeLevel string

const (
	NoticeLevelSuccess NoticeLevel = "success"
	NoticeLevelError   NoticeLevel = "error"
)

var noticeMessages = map[NoticeKind]string{
	NoticeAdded:                "product added to cart",
	NoticeRemovalFailed:        "failed to remove product",
	NoticeAdditionFailed:       "failed to add product",
	NoticeOutOfStock:           "requested quantity out of stock",
	NoticeQuantityUpdateFailed: "failed to update product quantity",
}

// Notice is a transient message for the user, the equivalent of a toast.
type Notice struct {
	ID        uuid.UUID   `json:"id"`
	Kind      NoticeKind  `json:"kind"`
	Level     NoticeLevel `json:"level"`
	ProductID int         `json:"product_id"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}

func NewNotice(kind NoticeKind, productID int) Notice {
	level := NoticeLevelError
	if kind == NoticeAdded {
		level = NoticeLevelSuccess
	}
	return Notice{
		ID:        uuid.New(),
		Kind:      kind,
		Level:     level,
		ProductID: productID,
		Message:   noticeMessages[kind],
		CreatedAt: time.Now(),
	}
}
