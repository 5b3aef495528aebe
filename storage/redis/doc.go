// Package redis provides a Redis storage backend for the authorization
// server, suitable for deployments that run more than one server
// instance or need issued artifacts to survive restarts.
//
// The Store implements every service in [storage.Services] plus the
// optional capabilities the server discovers by type assertion:
// [storage.RefreshTokenRotator], [storage.AssertionReplayService], and
// [storage.TokenRevocationService].
//
// # Key Schema
//
// All keys use a configurable prefix (default "oauth:") so the store can
// share a Redis instance with other applications:
//
//	{prefix}client:{clientID}         -> JSON(Client)
//	{prefix}at:{handle}               -> JSON(AccessToken)
//	{prefix}rt:{handle}               -> JSON(RefreshToken)
//	{prefix}code:{code}               -> JSON(AuthorizationCode)
//	{prefix}device:{deviceCode}       -> JSON(DeviceCode)
//	{prefix}usercode:{userCode}       -> deviceCode
//	{prefix}consent:{id}              -> JSON(Consent)
//	{prefix}consent:pair:{uid}:{cid}  -> consent ID
//	{prefix}session:{id}              -> JSON(Session)
//	{prefix}user:{id}                 -> JSON(User)
//	{prefix}username:{name}           -> user ID
//	{prefix}jti:{jti}                 -> seen marker (TTL = assertion expiry)
//	{prefix}index:uc:{uid}:{cid}      -> SET of token keys for bulk revocation
//
// Revocation and single-use consumption are recorded as marker keys
// ({key}:revoked, {key}:used) with the record's TTL rather than by
// rewriting the stored JSON.
//
// # Atomic Operations
//
// The single-winner guarantees for authorization code redemption, device
// code redemption, refresh token rotation, and assertion replay checks
// are enforced with server-side Lua scripts and SETNX, so they hold
// across server instances.
//
// # Usage
//
//	store, err := redis.New(ctx, redis.Config{
//	    Address:   "localhost:6379",
//	    KeyPrefix: "oauth:",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	srv, err := oauth.NewServer(store.Services(), settings)
//
// Recoverable client secrets can be encrypted at rest with AES-256-GCM:
//
//	key, _ := security.GenerateKey()
//	enc, _ := security.NewEncryptor(key)
//	store.SetEncryptor(enc)
package redis
