package preview

import (
	"fmt"
	"time"
)

// Size 图片尺寸信息
type Size struct {
	Width  int
	Height int
}

// Entry 是一次选择对应的预览文件
type Entry struct {
	Handle     string
	Name       string
	Path       string
	Generation uint64
	Bytes      int64
	Format     string
	Original   Size
	CreateTime time.Time
}

// RenderError 渲染错误类型
type RenderError struct {
	Terminal string
	Protocol string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error on %s terminal with %s protocol: %v", e.Terminal, e.Protocol, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// StoreError 预览存储错误类型
type StoreError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("preview store error during %s operation on %s: %v", e.Operation, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// FormatError 图片格式错误
type FormatError struct {
	Format   string
	FilePath string
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error for %s (%s): %s", e.FilePath, e.Format, e.Reason)
}
