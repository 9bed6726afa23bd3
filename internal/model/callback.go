package model

// Hook names a lifecycle point in the persistence sequence.
type Hook string

const (
	BeforeCreate Hook = "before_create"
	BeforeSave   Hook = "before_save"
	AfterSave    Hook = "after_save"
	AfterCreate  Hook = "after_create"
	BeforeDelete Hook = "before_delete"
	AfterDelete  Hook = "after_delete"
)

// Callback runs at a lifecycle point with the record's live attribute map.
// Before-hooks halt the operation by returning false; return values of
// after-hooks are ignored.
type Callback func(attrs map[string]any) bool

// ValidatorFunc is a custom validator registered on a class. It runs after
// the declarative rules, in registration order.
type ValidatorFunc func(attrs map[string]any, isCreate bool) []ErrorDetail
