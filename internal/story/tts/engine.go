package tts

import (
	"fmt"
	"os"
	"runtime"

	"wondertales/internal/domain/library/generator"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeSAPI          EngineType = "sapi"         // Windows only
	EngineTypeAVFoundation  EngineType = "avfoundation" // macOS only
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeProvider      EngineType = "provider" // Speech from the story provider
	EngineTypeAuto          EngineType = "auto"     // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// NewEngine creates a new TTS engine based on the provided config. provider
// may be nil when the story backend has no speech support.
func NewEngine(config Config, provider generator.SpeechGenerator) (Engine, error) {
	// Handle auto-selection
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = getBestEngine(provider).String()
	}

	switch config.Type {
	case EngineTypeMock.String():
		return NewMockTTSEngine(config), nil

	case EngineTypeProvider.String():
		if provider == nil {
			return nil, fmt.Errorf("provider engine selected but the story provider has no speech support")
		}
		return NewProviderEngine(provider), nil

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicTTSEngine(config)

	case EngineTypeESpeak.String():
		return newESpeakEngine(config)

	case EngineTypeSAPI.String():
		if runtime.GOOS != "windows" {
			return nil, fmt.Errorf("SAPI engine only supports Windows")
		}
		return newSAPIEngine(config)

	case EngineTypeAVFoundation.String():
		if runtime.GOOS != "darwin" {
			return nil, fmt.Errorf("AVFoundation engine only supports macOS")
		}
		return newAVFoundationEngine(config)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// getBestEngine returns the recommended engine for the current platform
func getBestEngine(provider generator.SpeechGenerator) EngineType {
	if hasGoogleCredentials() {
		return EngineTypeGoogleClassic
	}

	if provider != nil {
		if _, offline := provider.(*generator.Mock); !offline {
			return EngineTypeProvider
		}
	}

	switch runtime.GOOS {
	case "windows":
		return EngineTypeSAPI
	case "darwin":
		return EngineTypeAVFoundation
	}

	if _, err := findESpeakExecutable(); err == nil {
		return EngineTypeESpeak
	}
	return EngineTypeMock
}

// GetAvailableEngines returns engines available on the current platform
func GetAvailableEngines(provider generator.SpeechGenerator) []EngineType {
	engines := []EngineType{EngineTypeMock}

	if provider != nil {
		engines = append(engines, EngineTypeProvider)
	}

	if _, err := findESpeakExecutable(); err == nil {
		engines = append(engines, EngineTypeESpeak)
	}

	if hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}

	switch runtime.GOOS {
	case "windows":
		engines = append(engines, EngineTypeSAPI)
	case "darwin":
		engines = append(engines, EngineTypeAVFoundation)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	// Check for service account key file
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
