package utils

import (
	"encoding/base64"
	"fmt"
	"log"
	"strings"
)

// DecodeImagePayload accepts either a raw base64 string or a full
// "data:<mime>;base64,<data>" URI and returns the image bytes.
func DecodeImagePayload(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	if strings.HasPrefix(payload, "data:") {
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid data URI")
		}
		payload = parts[1]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	return data, nil
}

// EncodeDataURI embeds image bytes as a JPEG data URI.
func EncodeDataURI(image []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
}

// MealImageURL returns the reference to store on a photo-originated log entry:
// an S3 URL when uploads are configured, otherwise an inline data URI. Upload
// failures degrade to the data URI so logging never blocks on storage.
func MealImageURL(image []byte) string {
	if S3Enabled() {
		url, err := UploadMealImage(image, "image/jpeg")
		if err == nil {
			return url
		}
		log.Printf("meal photo upload failed, embedding inline: %v", err)
	}
	return EncodeDataURI(image)
}
