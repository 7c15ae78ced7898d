package main

import "github.com/imranansari/apigee-deploy-wf/cli"

func main() {
	cli.Execute()
}
