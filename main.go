package main

import "github.com/jotpay/payment-service/cmd"

func main() {
	cmd.Execute()
}
