package minio

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// ValidateObjectName validates an object key
func ValidateObjectName(objectName string) error {
	if objectName == "" {
		return fmt.Errorf("object name cannot be empty")
	}

	// S3 allows keys up to 1024 characters
	if len(objectName) > 1024 {
		return fmt.Errorf("object name cannot exceed 1024 characters")
	}

	if strings.Contains(objectName, "\x00") {
		return fmt.Errorf("object name cannot contain null bytes")
	}

	return nil
}

// DetectContentType detects the content type of a file based on its extension
func DetectContentType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}
