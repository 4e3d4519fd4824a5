package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// UserData holds user-specific settings that are stored locally
type UserData struct {
	LastDir   string    `json:"last_dir"`
	LastFile  string    `json:"last_file"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadUserData loads user data from the user.data file next to the config.
// Any problem reading it yields fresh defaults.
func LoadUserData() (*UserData, error) {
	userDataPath, err := getUserDataPath()
	if err != nil {
		return createDefaultUserData(), nil
	}

	if _, err := os.Stat(userDataPath); os.IsNotExist(err) {
		return createDefaultUserData(), nil
	}

	data, err := os.ReadFile(userDataPath)
	if err != nil {
		return createDefaultUserData(), nil
	}

	var userData UserData
	if err := json.Unmarshal(data, &userData); err != nil {
		// Invalid JSON, return default
		return createDefaultUserData(), nil
	}

	return &userData, nil
}

// SaveUserData saves user data to the user.data file
func (ud *UserData) SaveUserData() error {
	userDataPath, err := getUserDataPath()
	if err != nil {
		return err
	}

	ud.UpdatedAt = time.Now()
	if ud.CreatedAt.IsZero() {
		ud.CreatedAt = ud.UpdatedAt
	}

	data, err := json.MarshalIndent(ud, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(userDataPath, data, 0644)
}

// RememberFile records the directory and name of the last picked image
func (ud *UserData) RememberFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	ud.LastDir = filepath.Dir(abs)
	ud.LastFile = filepath.Base(abs)
	return ud.SaveUserData()
}

// StartDir returns the directory the file picker should open in
func (ud *UserData) StartDir() string {
	if ud.LastDir != "" {
		if info, err := os.Stat(ud.LastDir); err == nil && info.IsDir() {
			return ud.LastDir
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// createDefaultUserData creates a new UserData with default values
func createDefaultUserData() *UserData {
	now := time.Now()
	return &UserData{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// getUserDataPath returns the path to the user.data file
func getUserDataPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(homeDir, ".dermascan")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "user.data"), nil
}
