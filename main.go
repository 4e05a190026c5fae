// Package main HarborCD deployment orchestration API
//
//	@title			HarborCD API
//	@version		1.0.0
//	@description	HarborCD is a deployment pipeline and release orchestration engine
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://harborcd.dev/support
//	@contact.email	support@harborcd.dev
//
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host			localhost:3000
//	@BasePath		/api/v1
package main

import "github.com/harborcd/harborcd/internal"

//go:generate swag init --parseDependency --outputTypes go -g ./main.go -o ./internal/server/docs

func main() {
	internal.Run()
}
