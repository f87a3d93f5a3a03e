/*
Package backend implements the configurable resource backend.

A backend manages one store per resource kind and provides a uniform
RESTful API for all of them. The configuration is done entirely via JSON.

Example:

	{
	  "collections": [
	    {
	      "resource": "organization",
	      "schema_id": "organization.json",
	      "properties": ["email"],
	      "unique_indices": ["name"]
	    },
	    {
	      "resource": "task",
	      "schema_id": "task.json",
	      "properties": ["type", "comments", "completeAfter", "completeBefore", "address"],
	      "notifications": [
	        {"operation": "create", "channel": "tasks", "event": "new-task"}
	      ]
	    }
	  ]
	}

The example creates two resource kinds. Each kind answers the same five
operations: list and create on /api/{plural}, get, update and delete on
/api/{plural}/{id}. The "properties" list is the whitelist of mutable
fields; "unique_indices" declares fields that must be unique across all
instances of the kind. Updates replace the whole field set, fields omitted
from the request become absent on the instance.

Request bodies are validated against the JSON schema named by "schema_id"
before any store operation runs. Configured notifications publish the
instance to the injected core.Notifier after a successful write,
fire-and-forget.

With a database injected, every kind is backed by its own Postgres table;
without one, kinds live in process memory, which is what the unit tests
and the database-free development mode use.
*/
package backend
