// Package cli はsurveyctlのサブコマンドを提供する。
package cli
