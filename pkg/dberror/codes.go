package dberror

// Error codes.
const (
	CodeTransactionAborted = "TXN_ABORTED"
	CodeBufferPoolFull     = "BUFFER_POOL_FULL"
	CodeMalformedPage      = "MALFORMED_PAGE"
	CodeIO                 = "IO_ERROR"
	CodeSchemaMismatch     = "SCHEMA_MISMATCH"
	CodeTupleNotFound      = "TUPLE_NOT_FOUND"
	CodeTableNotFound      = "TABLE_NOT_FOUND"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeClosed             = "CLOSED"
)

// Sentinels for errors.Is. Use Errorf to attach instance detail.
var (
	// ErrTransactionAborted is returned when a lock could not be acquired before
	// the deadline. The transaction's dirty pages have already been restored and
	// its locks released.
	ErrTransactionAborted = &DBError{Code: CodeTransactionAborted, Category: ErrCategoryConcurrency, Message: "transaction aborted"}

	// ErrBufferPoolFull is returned when every cached page is dirty and a new
	// page must be brought in.
	ErrBufferPoolFull = &DBError{Code: CodeBufferPoolFull, Category: ErrCategoryTransient, Message: "buffer pool full"}

	ErrMalformedPage  = &DBError{Code: CodeMalformedPage, Category: ErrCategoryData, Message: "malformed page"}
	ErrIO             = &DBError{Code: CodeIO, Category: ErrCategorySystem, Message: "i/o error"}
	ErrSchemaMismatch = &DBError{Code: CodeSchemaMismatch, Category: ErrCategoryUser, Message: "schema mismatch"}
	ErrTupleNotFound  = &DBError{Code: CodeTupleNotFound, Category: ErrCategoryUser, Message: "tuple not found"}
	ErrTableNotFound  = &DBError{Code: CodeTableNotFound, Category: ErrCategoryUser, Message: "table not found"}
	ErrInvalidConfig  = &DBError{Code: CodeInvalidConfig, Category: ErrCategorySystem, Message: "invalid configuration"}
	ErrClosed         = &DBError{Code: CodeClosed, Category: ErrCategorySystem, Message: "resource closed"}
)

var categories = map[string]ErrorCategory{
	CodeTransactionAborted: ErrCategoryConcurrency,
	CodeBufferPoolFull:     ErrCategoryTransient,
	CodeMalformedPage:      ErrCategoryData,
	CodeIO:                 ErrCategorySystem,
	CodeSchemaMismatch:     ErrCategoryUser,
	CodeTupleNotFound:      ErrCategoryUser,
	CodeTableNotFound:      ErrCategoryUser,
	CodeInvalidConfig:      ErrCategorySystem,
	CodeClosed:             ErrCategorySystem,
}

func categoryOf(code string) ErrorCategory {
	if c, ok := categories[code]; ok {
		return c
	}
	return ErrCategorySystem
}
