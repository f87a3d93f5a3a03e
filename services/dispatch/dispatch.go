// The dispatch service is the REST backend for the delivery coordination
// domain: organizations, teams, workers, customers, contacts, addresses,
// locations, tasks and users, plus websocket channels for live updates.
package main

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/sirupsen/logrus"

	"github.com/snabb-tech/dispatch/core"
	"github.com/snabb-tech/dispatch/core/backend"
	"github.com/snabb-tech/dispatch/core/csql"
	"github.com/snabb-tech/dispatch/core/logger"
	"github.com/snabb-tech/dispatch/core/schema"
	"github.com/snabb-tech/dispatch/events"
	"github.com/snabb-tech/dispatch/realtime"
	"github.com/snabb-tech/dispatch/schemas"
)

var configurationJSON string = `
{
	"collections": [
		{
			"resource": "organization",
			"schema_id": "organization.json",
			"properties": ["email"],
			"unique_indices": ["name"]
		},
		{
			"resource": "team",
			"schema_id": "team.json",
			"properties": ["description"],
			"unique_indices": ["name"]
		},
		{
			"resource": "user",
			"schema_id": "user.json",
			"properties": ["firstName", "lastName", "mobileNumber"],
			"unique_indices": ["email"]
		},
		{
			"resource": "customer",
			"schema_id": "customer.json",
			"properties": ["firstName", "lastName", "mobileNumber"],
			"unique_indices": ["email"]
		},
		{
			"resource": "worker",
			"schema_id": "worker.json",
			"properties": ["firstName", "lastName", "mobileNumber",
				"transportType", "transportDescription", "licensePlate",
				"color", "location"],
			"unique_indices": ["email"],
			"notifications": [
				{
					"operation": "update",
					"channel": "workers",
					"event": "worker-updated"
				}
			]
		},
		{
			"resource": "contact",
			"schema_id": "contact.json",
			"properties": ["firstName", "lastName", "companyName"],
			"unique_indices": ["email", "mobileNumber"]
		},
		{
			"resource": "address",
			"schema_id": "address.json",
			"properties": ["address", "address2", "city", "state",
				"country", "postalCode", "latitude", "longitude"]
		},
		{
			"resource": "location",
			"schema_id": "location.json",
			"properties": ["address", "address2", "city", "state",
				"country", "postalCode", "latitude", "longitude"]
		},
		{
			"resource": "task",
			"schema_id": "task.json",
			"properties": ["type", "comments", "completeAfter",
				"completeBefore", "address"],
			"notifications": [
				{
					"operation": "create",
					"channel": "tasks",
					"event": "new-task"
				}
			]
		}
	]
}
`

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres         string `env:"POSTGRES" description:"the connection string for the Postgres DB; without it all data is held in process memory"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" description:"password for the Postgres DB"`
	KafkaBrokers     string `env:"KAFKA_BROKERS" description:"comma separated Kafka brokers for resource notifications; optional"`
	WebsocketSecret  string `env:"WEBSOCKET_SECRET,required" description:"secret for signing channel subscription tokens"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"minimum log level"`
	Port             string `env:"PORT,default=3000" description:"the port the service listens on"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logLevel, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.InitLogger(logLevel)
	log := logger.Default()

	var db *csql.DB
	if service.Postgres != "" {
		db = csql.OpenWithSchema(service.Postgres, service.PostgresPassword, "dispatch")
		defer db.Close()
	} else {
		log.Warningln("POSTGRES not set, keeping all data in process memory")
	}

	router := mux.NewRouter()
	validator := schema.MustNewValidatorFromFS(schemas.FS)
	hub := realtime.NewHub(service.WebsocketSecret)

	var notifier core.Notifier = hub
	if service.KafkaBrokers != "" {
		kafkaNotifier := events.NewKafkaNotifier(strings.Split(service.KafkaBrokers, ","))
		defer kafkaNotifier.Close()
		notifier = events.MultiNotifier{hub, kafkaNotifier}
	}

	backend.MustNew(&backend.Builder{
		Config:    configurationJSON,
		DB:        db,
		Router:    router,
		Notifier:  notifier,
		Validator: validator,
	})
	realtime.MustNewAPI(&realtime.Builder{
		Router:    router,
		Hub:       hub,
		Validator: validator,
	})

	log.Infoln("listen on port :" + service.Port)
	log.Fatalln(http.ListenAndServe(":"+service.Port, router))
}
