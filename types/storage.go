package types

// StorageManager is the persistent key-value store consulted for the session token.
type StorageManager interface {
	LifecycleManager
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

type StorageManagerCreator func(config interface{}) (StorageManager, error)

const TokenKey = "token"
