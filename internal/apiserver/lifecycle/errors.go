package lifecycle

import "errors"

var (
	// ErrAuthorizationDenied 调用方无权执行该写操作
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrNotFound 申请或用户不存在
	ErrNotFound = errors.New("not found")

	// ErrAlreadyDecided 申请已处于终态，审批人不能再改写
	ErrAlreadyDecided = errors.New("request already decided")
)
