package borrow

type BorrowReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type ListQuery struct {
	StudentID int64  `query:"student_id"`
	BookID    int64  `query:"book_id"`
	Status    string `query:"status"`
	From      string `query:"from"` // RFC3339 or YYYY-MM-DD
	To        string `query:"to"`
}
