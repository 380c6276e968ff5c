// Short-lived caching of string values (usually JSON) under a namespace and key, with a fixed TTL and explicit purging.
//
// Used to keep hot reads such as reputation scores off the authoritative store. Backends: in-process memory, redis and memcached.
package cachestore
