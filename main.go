package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/custody-trail/chaincode/custody-trail/contracts"
)

func main() {
	chaincode, err := contractapi.NewChaincode(
		&contracts.CustodyContract{},
		&contracts.UserRegistryContract{},
	)
	if err != nil {
		log.Fatalf("Error creating custody trail chaincode: %v", err)
	}

	// Run as an external chaincode service when an address is configured
	if address := os.Getenv("CHAINCODE_SERVER_ADDRESS"); address != "" {
		server := &shim.ChaincodeServer{
			CCID:    os.Getenv("CHAINCODE_ID"),
			Address: address,
			CC:      chaincode,
			TLSProps: shim.TLSProperties{
				Disabled: true,
			},
		}
		if err := server.Start(); err != nil {
			log.Fatalf("Error starting custody trail chaincode server: %v", err)
		}
		return
	}

	if err := chaincode.Start(); err != nil {
		log.Fatalf("Error starting custody trail chaincode: %v", err)
	}
}
