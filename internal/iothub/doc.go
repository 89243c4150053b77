/*
Package iothub is a client of the IoT Hub service REST API limited to the
device twin registry: querying twins with the IoT Hub query language and
patching a single twin.

Requests are signed with a shared access signature derived from the service
connection string:

	HostName=<hub>.azure-devices.net;SharedAccessKeyName=<policy>;SharedAccessKey=<base64 key>

The client does not retry. Throttled and failed requests are returned to the
caller as errors wrapping one of the model errors.
*/
package iothub
