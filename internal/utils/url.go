package utils

import (
	"errors"
	"net/url"
)

var ErrInvalidURL = errors.New("invalid url")

func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func IsValidURL(rawURL string) bool {
	return ValidateURL(rawURL) == nil
}
