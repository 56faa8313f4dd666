// Package mysql persists the intent lifecycle audit trail. It ships a
// file-backed memory implementation for local iteration and a real MySQL
// implementation behind the same Repository interface.
package mysql
