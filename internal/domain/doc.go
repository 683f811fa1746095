// Package domain contains the core entities of the 1001 Stories platform:
// users and their roles, story submissions and their publication workflow,
// AI reviews, notifications, data exports and account deletion requests.
// It has no knowledge of storage, transport or external services.
package domain
